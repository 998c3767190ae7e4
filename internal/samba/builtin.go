package samba

import (
	"strconv"
	"strings"
)

// Principals created by domain provisioning. They are hidden from listings.
var (
	builtinUsers = newNameSet(
		"Administrator",
		"Guest",
		"krbtgt",
	)

	builtinGroups = newNameSet(
		"Account Operators",
		"Administrators",
		"Allowed RODC Password Replication Group",
		"Backup Operators",
		"Cert Publishers",
		"Certificate Service DCOM Access",
		"Cryptographic Operators",
		"Denied RODC Password Replication Group",
		"Distributed COM Users",
		"DnsAdmins",
		"DnsUpdateProxy",
		"Domain Admins",
		"Domain Computers",
		"Domain Controllers",
		"Domain Guests",
		"Domain Users",
		"Enterprise Admins",
		"Enterprise Read-only Domain Controllers",
		"Event Log Readers",
		"Group Policy Creator Owners",
		"Guests",
		"IIS_IUSRS",
		"Incoming Forest Trust Builders",
		"Network Configuration Operators",
		"Performance Log Users",
		"Performance Monitor Users",
		"Pre-Windows 2000 Compatible Access",
		"Print Operators",
		"Protected Users",
		"RAS and IAS Servers",
		"Read-only Domain Controllers",
		"Remote Desktop Users",
		"Replicator",
		"Schema Admins",
		"Server Operators",
		"Terminal Server License Servers",
		"Users",
		"Windows Authorization Access Group",
	)
)

type nameSet map[string]struct{}

func newNameSet(names ...string) nameSet {
	set := make(nameSet, len(names))
	for _, n := range names {
		set[strings.ToLower(n)] = struct{}{}
	}
	return set
}

func (s nameSet) contains(name string) bool {
	_, ok := s[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// IsBuiltinUser reports whether name is a provisioning-created account.
func IsBuiltinUser(name string) bool {
	return builtinUsers.contains(name)
}

// IsBuiltinGroup reports whether name is a provisioning-created group.
func IsBuiltinGroup(name string) bool {
	return builtinGroups.contains(name)
}

// IsBuiltinSID reports whether sid names a well-known principal: anything in
// the BUILTIN domain (S-1-5-32) or a domain principal with a RID below 1000.
func IsBuiltinSID(sid string) bool {
	if strings.HasPrefix(sid, "S-1-5-32-") {
		return true
	}
	if !strings.HasPrefix(sid, "S-1-5-21-") {
		return false
	}

	idx := strings.LastIndexByte(sid, '-')
	rid, err := strconv.ParseUint(sid[idx+1:], 10, 32)
	if err != nil {
		return false
	}
	return rid < 1000
}

func filterNames(names []string, builtin func(string) bool) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !builtin(n) {
			out = append(out, n)
		}
	}
	return out
}
