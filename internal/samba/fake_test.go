package samba

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/kballard/go-shellquote"
)

// fakeDC is an in-memory domain controller answering samba-tool command lines
// the way a real server formats them.
type fakeDC struct {
	mu sync.Mutex

	users  map[string]*fakeUser
	groups map[string]*fakeGroup
	ous    []string
	policy fakePolicy
	nextID int

	// createDisabled makes "user add" leave new accounts disabled.
	createDisabled bool
	// failures maps "<noun> <verb>" to a canned failure.
	failures map[string]fakeFailure

	// calls holds each command with positionals ahead of options; raw holds
	// the argv exactly as sent.
	calls   [][]string
	raw     [][]string
	pingErr error
	closed  bool
}

type fakeUser struct {
	name      string
	password  string
	enabled   bool
	givenName string
	surname   string
	rid       int
}

type fakeGroup struct {
	name        string
	description string
	members     []string
	rid         int
}

type fakePolicy struct {
	complexity     bool
	plaintext      bool
	history        int
	minLength      int
	minAgeDays     int
	maxAgeDays     int
	lockoutMins    int
	threshold      int
	resetAfterMins int
}

type fakeFailure struct {
	stderr string
	code   int
}

func newFakeDC() *fakeDC {
	dc := &fakeDC{
		users:    make(map[string]*fakeUser),
		groups:   make(map[string]*fakeGroup),
		failures: make(map[string]fakeFailure),
		ous:      []string{"OU=Domain Controllers", "OU=Staff"},
		nextID:   1103,
		policy: fakePolicy{
			complexity:     true,
			history:        24,
			minLength:      7,
			minAgeDays:     1,
			maxAgeDays:     42,
			lockoutMins:    30,
			resetAfterMins: 30,
		},
	}
	for _, name := range []string{"Administrator", "Guest", "krbtgt"} {
		dc.users[strings.ToLower(name)] = &fakeUser{name: name, enabled: name == "Administrator", rid: 500}
	}
	for _, name := range []string{"Domain Admins", "Domain Users", "Administrators", "Schema Admins"} {
		dc.groups[strings.ToLower(name)] = &fakeGroup{name: name, rid: 512, members: []string{"Administrator"}}
	}
	return dc
}

func (dc *fakeDC) session(t testing.TB) *Session {
	t.Helper()
	s := NewSession(dc, &SessionConfig{Host: "dc1.samdom.example.com", Username: "root"})
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func (dc *fakeDC) failOn(command, stderr string) {
	dc.failWith(command, stderr, 255)
}

func (dc *fakeDC) failWith(command, stderr string, code int) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	dc.failures[command] = fakeFailure{stderr: stderr, code: code}
}

// lastRaw returns the most recent argv sent for "noun verb", exactly as sent.
func (dc *fakeDC) lastRaw(noun, verb string) []string {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	for i := len(dc.raw) - 1; i >= 0; i-- {
		if c := dc.raw[i]; len(c) >= 2 && c[0] == noun && c[1] == verb {
			return c
		}
	}
	return nil
}

func (dc *fakeDC) callCount(prefix ...string) int {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	n := 0
	for _, c := range dc.calls {
		if len(c) >= len(prefix) && strings.Join(c[:len(prefix)], " ") == strings.Join(prefix, " ") {
			n++
		}
	}
	return n
}

func (dc *fakeDC) Ping(ctx context.Context) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	return dc.pingErr
}

func (dc *fakeDC) Close() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	dc.closed = true
	return nil
}

func (dc *fakeDC) Exec(ctx context.Context, command string) (string, string, int, error) {
	argv := splitCommand(command)
	if len(argv) > 0 && argv[0] == DefaultToolPath {
		argv = argv[1:]
	}

	dc.mu.Lock()
	defer dc.mu.Unlock()

	dc.raw = append(dc.raw, argv)
	argv = positionalsFirst(argv)
	dc.calls = append(dc.calls, argv)

	if len(argv) < 2 {
		return "Usage: samba-tool <subcommand>\n", "", 0, nil
	}
	if f, ok := dc.failures[argv[0]+" "+argv[1]]; ok {
		return "", f.stderr, f.code, nil
	}

	switch argv[0] {
	case "user":
		return dc.user(argv[1], argv[2:])
	case "group":
		return dc.group(argv[1], argv[2:])
	case "domain":
		return dc.domain(argv[1:])
	case "ou":
		return dc.ou(argv[1], argv[2:])
	case "computer":
		return "DC1$\nWS01$\n", "", 0, nil
	case "testparm":
		return sampleTestparm, "", 0, nil
	}
	return "Usage: samba-tool <subcommand>\n", "", 0, nil
}

func (dc *fakeDC) ou(verb string, rest []string) (string, string, int, error) {
	if verb == "list" {
		return strings.Join(dc.ous, "\n") + "\n", "", 0, nil
	}
	if len(rest) == 0 {
		return "Usage: samba-tool ou " + verb + "\n", "", 0, nil
	}

	dn := rest[0]
	idx := -1
	for i, ou := range dc.ous {
		if strings.EqualFold(ou, dn) {
			idx = i
		}
	}

	switch verb {
	case "create":
		if idx >= 0 {
			return "", fmt.Sprintf("ERROR: Failed to create ou \"%s\" - Entry %s already exists\n", dn, dn), 255, nil
		}
		dc.ous = append(dc.ous, dn)
		return fmt.Sprintf("Created ou \"%s\"\n", dn), "", 0, nil
	case "delete":
		if idx < 0 {
			return "", fmt.Sprintf("ERROR: Unable to find ou \"%s\"\n", dn), 255, nil
		}
		dc.ous = append(dc.ous[:idx], dc.ous[idx+1:]...)
		return fmt.Sprintf("Deleted ou \"%s\"\n", dn), "", 0, nil
	}
	return "Usage: samba-tool ou " + verb + "\n", "", 0, nil
}

func notFound(kind, name string) (string, string, int, error) {
	return "", fmt.Sprintf("ERROR: Unable to find %s \"%s\"\n", kind, name), 255, nil
}

func (dc *fakeDC) user(verb string, rest []string) (string, string, int, error) {
	if verb == "list" {
		names := make([]string, 0, len(dc.users))
		for _, u := range dc.users {
			names = append(names, u.name)
		}
		sort.Strings(names)
		return strings.Join(names, "\n") + "\n", "", 0, nil
	}

	if len(rest) == 0 {
		return "Usage: samba-tool user " + verb + "\n", "", 0, nil
	}
	name := rest[0]
	u := dc.users[strings.ToLower(name)]

	switch verb {
	case "add", "create":
		if u != nil {
			return "", fmt.Sprintf("ERROR(ldb): Failed to add user '%s':  - LDAP error 68 LDAP_ENTRY_ALREADY_EXISTS -  <00002071: samldb: Account name (sAMAccountName) '%s' already in use!> <>\n", name, name), 255, nil
		}
		if len(rest) < 2 {
			return "", "ERROR: password required\n", 255, nil
		}
		nu := &fakeUser{name: name, password: rest[1], enabled: !dc.createDisabled, rid: dc.nextID}
		dc.nextID++
		for _, opt := range rest[2:] {
			if v, ok := strings.CutPrefix(opt, "--given-name="); ok {
				nu.givenName = v
			}
			if v, ok := strings.CutPrefix(opt, "--surname="); ok {
				nu.surname = v
			}
		}
		dc.users[strings.ToLower(name)] = nu
		return fmt.Sprintf("User '%s' added successfully\n", name), "", 0, nil
	case "delete":
		if u == nil {
			return "", fmt.Sprintf("ERROR(exception): Failed to remove user \"%s\" - Unable to find user \"%s\"\n", name, name), 255, nil
		}
		delete(dc.users, strings.ToLower(name))
		for _, g := range dc.groups {
			g.members = removeFold(g.members, name)
		}
		return fmt.Sprintf("Deleted user %s\n", name), "", 0, nil
	case "enable", "disable":
		if u == nil {
			return notFound("user", name)
		}
		u.enabled = verb == "enable"
		return fmt.Sprintf("%sd user '%s'\n", strings.ToUpper(verb[:1])+verb[1:], name), "", 0, nil
	case "setpassword":
		if u == nil {
			return "", fmt.Sprintf("ERROR: Failed to set password for user '%s': Unable to find user \"%s\"\n", name, name), 255, nil
		}
		for _, opt := range rest[1:] {
			if v, ok := strings.CutPrefix(opt, "--newpassword="); ok {
				u.password = v
			}
		}
		return "Changed password OK\n", "", 0, nil
	case "show":
		if u == nil {
			return notFound("user", name)
		}
		return dc.showUser(u), "", 0, nil
	case "getgroups":
		if u == nil {
			return notFound("user", name)
		}
		var out []string
		for _, g := range dc.groups {
			if containsFold(g.members, u.name) {
				out = append(out, g.name)
			}
		}
		sort.Strings(out)
		return strings.Join(out, "\n") + "\n", "", 0, nil
	}
	return "Usage: samba-tool user\n", "", 0, nil
}

func (dc *fakeDC) showUser(u *fakeUser) string {
	uac := UACNormalAccount
	if !u.enabled {
		uac |= UACAccountDisable
	}
	var b strings.Builder
	fmt.Fprintf(&b, "dn: CN=%s,CN=Users,DC=samdom,DC=example,DC=com\n", u.name)
	b.WriteString("objectClass: top\nobjectClass: person\nobjectClass: organizationalPerson\nobjectClass: user\n")
	fmt.Fprintf(&b, "cn: %s\n", u.name)
	if u.givenName != "" {
		fmt.Fprintf(&b, "givenName: %s\n", u.givenName)
	}
	if u.surname != "" {
		fmt.Fprintf(&b, "sn: %s\n", u.surname)
	}
	b.WriteString("whenCreated: 20240315093000.0Z\n")
	fmt.Fprintf(&b, "objectGUID: 6c4e9c1e-58b4-4b4f-9d2a-%012d\n", u.rid)
	fmt.Fprintf(&b, "objectSid: S-1-5-21-1234567890-1234567890-1234567890-%d\n", u.rid)
	fmt.Fprintf(&b, "sAMAccountName: %s\n", u.name)
	fmt.Fprintf(&b, "userAccountControl: %d\n", uac)
	b.WriteString("pwdLastSet: 133548498000000000\naccountExpires: 9223372036854775807\n")
	for _, g := range dc.groups {
		if containsFold(g.members, u.name) {
			fmt.Fprintf(&b, "memberOf: CN=%s,CN=Users,DC=samdom,DC=example,DC=com\n", g.name)
		}
	}
	return b.String()
}

func (dc *fakeDC) group(verb string, rest []string) (string, string, int, error) {
	if verb == "list" {
		names := make([]string, 0, len(dc.groups))
		for _, g := range dc.groups {
			names = append(names, g.name)
		}
		sort.Strings(names)
		return strings.Join(names, "\n") + "\n", "", 0, nil
	}

	if len(rest) == 0 {
		return "Usage: samba-tool group " + verb + "\n", "", 0, nil
	}
	name := rest[0]
	g := dc.groups[strings.ToLower(name)]

	switch verb {
	case "add", "create":
		if g != nil {
			return "", fmt.Sprintf("ERROR(ldb): Failed to create group \"%s\" - LDAP error 68 LDAP_ENTRY_ALREADY_EXISTS - <Entry CN=%s,CN=Users,DC=samdom,DC=example,DC=com already exists>\n", name, name), 255, nil
		}
		ng := &fakeGroup{name: name, rid: dc.nextID}
		dc.nextID++
		for _, opt := range rest[1:] {
			if v, ok := strings.CutPrefix(opt, "--description="); ok {
				ng.description = v
			}
		}
		dc.groups[strings.ToLower(name)] = ng
		return fmt.Sprintf("Added group %s\n", name), "", 0, nil
	case "delete":
		if g == nil {
			return "", fmt.Sprintf("ERROR: Unable to find group \"%s\"\n", name), 255, nil
		}
		delete(dc.groups, strings.ToLower(name))
		return fmt.Sprintf("Deleted group %s\n", name), "", 0, nil
	case "listmembers":
		if g == nil {
			return notFound("group", name)
		}
		return strings.Join(g.members, "\n") + "\n", "", 0, nil
	case "show":
		if g == nil {
			return notFound("group", name)
		}
		var b strings.Builder
		fmt.Fprintf(&b, "dn: CN=%s,CN=Users,DC=samdom,DC=example,DC=com\n", g.name)
		fmt.Fprintf(&b, "cn: %s\nsAMAccountName: %s\n", g.name, g.name)
		if g.description != "" {
			fmt.Fprintf(&b, "description: %s\n", g.description)
		}
		fmt.Fprintf(&b, "objectSid: S-1-5-21-1234567890-1234567890-1234567890-%d\n", g.rid)
		return b.String(), "", 0, nil
	case "addmembers", "removemembers":
		if g == nil {
			return notFound("group", name)
		}
		if len(rest) < 2 {
			return "Usage: samba-tool group " + verb + "\n", "", 0, nil
		}
		for _, m := range strings.Split(rest[1], ",") {
			if _, ok := dc.users[strings.ToLower(m)]; !ok {
				if _, ok := dc.groups[strings.ToLower(m)]; !ok {
					return "", fmt.Sprintf("ERROR(exception): Failed to add members [%q] to group \"%s\" - Unable to find \"%s\". Operation cancelled.\n", m, name, m), 255, nil
				}
			}
		}
		for _, m := range strings.Split(rest[1], ",") {
			if verb == "addmembers" {
				if !containsFold(g.members, m) {
					g.members = append(g.members, m)
				}
			} else {
				g.members = removeFold(g.members, m)
			}
		}
		return fmt.Sprintf("Modified members of group %s\n", name), "", 0, nil
	}
	return "Usage: samba-tool group\n", "", 0, nil
}

func (dc *fakeDC) domain(rest []string) (string, string, int, error) {
	switch {
	case rest[0] == "info":
		return "Forest           : samdom.example.com\n" +
			"Domain           : samdom.example.com\n" +
			"Netbios domain   : SAMDOM\n" +
			"DC name          : dc1.samdom.example.com\n" +
			"DC netbios name  : DC1\n" +
			"Server site      : Default-First-Site-Name\n" +
			"Client site      : Default-First-Site-Name\n", "", 0, nil
	case len(rest) >= 2 && rest[0] == "passwordsettings" && rest[1] == "show":
		return dc.showPolicy(), "", 0, nil
	case len(rest) >= 2 && rest[0] == "passwordsettings" && rest[1] == "set":
		next := dc.policy
		for _, opt := range rest[2:] {
			flag, value, _ := strings.Cut(strings.TrimPrefix(opt, "--"), "=")
			n, _ := strconv.Atoi(value)
			switch flag {
			case "complexity":
				next.complexity = value == "on"
			case "store-plaintext":
				next.plaintext = value == "on"
			case "history-length":
				next.history = n
			case "min-pwd-length":
				next.minLength = n
			case "min-pwd-age":
				next.minAgeDays = n
			case "max-pwd-age":
				next.maxAgeDays = n
			case "account-lockout-duration":
				next.lockoutMins = n
			case "account-lockout-threshold":
				next.threshold = n
			case "reset-account-lockout-after":
				next.resetAfterMins = n
			default:
				return "Usage: samba-tool domain passwordsettings set\n", "", 0, nil
			}
		}
		if next.maxAgeDays > 0 && next.minAgeDays >= next.maxAgeDays {
			return "", "ERROR: Maximum password age needs to be larger than minimum password age!\n", 255, nil
		}
		if next.lockoutMins > 0 && next.lockoutMins < next.resetAfterMins {
			return "", "ERROR: Length of account lockout duration must be greater than or equal to the reset account lockout after value!\n", 255, nil
		}
		dc.policy = next
		return "All changes applied successfully!\n", "", 0, nil
	}
	return "Usage: samba-tool domain\n", "", 0, nil
}

func (dc *fakeDC) showPolicy() string {
	p := dc.policy
	return fmt.Sprintf(`Password information for domain 'DC=samdom,DC=example,DC=com'

Password complexity: %s
Store plaintext passwords: %s
Password history length: %d
Minimum password length: %d
Minimum password age (days): %d
Maximum password age (days): %d
Account lockout duration (mins): %d
Account lockout threshold (attempts): %d
Reset account lockout after (mins): %d
`, onOff(p.complexity), onOff(p.plaintext), p.history, p.minLength, p.minAgeDays,
		p.maxAgeDays, p.lockoutMins, p.threshold, p.resetAfterMins)
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func removeFold(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if !strings.EqualFold(v, s) {
			out = append(out, v)
		}
	}
	return out
}

func splitCommand(cmd string) []string {
	argv, err := shellquote.Split(cmd)
	if err != nil {
		panic(fmt.Sprintf("unparseable command %q: %v", cmd, err))
	}
	return argv
}

// positionalsFirst rewrites "noun verb opts... -- pos..." as "noun verb pos... opts...".
func positionalsFirst(argv []string) []string {
	if len(argv) < 2 {
		return argv
	}
	sep := slices.Index(argv[2:], "--")
	if sep < 0 {
		return argv
	}
	sep += 2
	out := make([]string, 0, len(argv)-1)
	out = append(out, argv[:2]...)
	out = append(out, argv[sep+1:]...)
	return append(out, argv[2:sep]...)
}
