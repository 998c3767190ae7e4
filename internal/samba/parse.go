package samba

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/go-objectsid"
	"github.com/go-ldap/ldap/v3"
	"github.com/go-ldap/ldif"
	"github.com/google/uuid"
)

// windowsEpochOffset is the number of 100ns intervals between 1601-01-01 and 1970-01-01.
const windowsEpochOffset = 116444736000000000

func splitLines(raw string) []string {
	return strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
}

// ParseNameList parses one-name-per-line output, dropping blanks and duplicates.
func ParseNameList(raw string) []string {
	seen := make(map[string]struct{})
	names := make([]string, 0)

	for _, line := range splitLines(raw) {
		name := strings.TrimSpace(line)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}

	return names
}

// ParseUserList parses "user list" output with built-in accounts removed.
func ParseUserList(raw string) []string {
	return filterNames(ParseNameList(raw), IsBuiltinUser)
}

// ParseGroupList parses "group list" output with built-in groups removed.
func ParseGroupList(raw string) []string {
	return filterNames(ParseNameList(raw), IsBuiltinGroup)
}

// ldifEntry holds the attributes of an LDIF record keyed by lowercased name.
type ldifEntry struct {
	values map[string][]string
}

// parseLDIF reads the single record printed by "user show" or "group show".
// Blank lines and comments are dropped and the dn line is moved to the front
// before parsing, since samba-tool does not always print it first.
func parseLDIF(op, raw string) (*ldifEntry, error) {
	var (
		groups [][]string
		dnAt   = -1
	)
	for _, line := range splitLines(raw) {
		switch {
		case strings.TrimSpace(line) == "", strings.HasPrefix(line, "#"):
			continue
		case strings.HasPrefix(line, " ") && len(groups) > 0:
			groups[len(groups)-1] = append(groups[len(groups)-1], line)
			continue
		}
		if dnAt < 0 && len(line) >= 3 && strings.EqualFold(line[:3], "dn:") {
			dnAt = len(groups)
		}
		groups = append(groups, []string{line})
	}
	if dnAt < 0 {
		return nil, NewParseError(op, "dn", "required field missing")
	}

	record := append([]string(nil), groups[dnAt]...)
	for i, g := range groups {
		if i != dnAt {
			record = append(record, g...)
		}
	}

	doc, err := ldif.Parse(strings.Join(record, "\n") + "\n")
	if err != nil {
		return nil, NewParseError(op, "record", fmt.Sprintf("malformed LDIF: %v", err))
	}
	entries := doc.AllEntries()
	if len(entries) == 0 {
		return nil, NewParseError(op, "dn", "required field missing")
	}

	entry := entries[0]
	e := &ldifEntry{values: make(map[string][]string, len(entry.Attributes)+1)}
	if entry.DN != "" {
		e.values["dn"] = []string{entry.DN}
	}
	for _, attr := range entry.Attributes {
		key := strings.ToLower(attr.Name)
		e.values[key] = append(e.values[key], attr.Values...)
	}
	return e, nil
}

func (e *ldifEntry) first(key string) string {
	if vals := e.values[strings.ToLower(key)]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}

func (e *ldifEntry) all(key string) []string {
	return e.values[strings.ToLower(key)]
}

func (e *ldifEntry) required(op, key string) (string, error) {
	v := e.first(key)
	if v == "" {
		return "", NewParseError(op, key, "required field missing")
	}
	return v, nil
}

// ParseUserShow parses the LDIF output of "user show".
func ParseUserShow(raw string) (*User, error) {
	const op = "parse user"

	e, err := parseLDIF(op, raw)
	if err != nil {
		return nil, err
	}

	dn, err := e.required(op, "dn")
	if err != nil {
		return nil, err
	}
	if _, err := ldap.ParseDN(dn); err != nil {
		return nil, NewParseError(op, "dn", fmt.Sprintf("malformed distinguished name %q", dn))
	}

	name, err := e.required(op, "sAMAccountName")
	if err != nil {
		return nil, err
	}

	uacRaw, err := e.required(op, "userAccountControl")
	if err != nil {
		return nil, err
	}
	uac, err := strconv.ParseInt(uacRaw, 10, 64)
	if err != nil {
		return nil, NewParseError(op, "userAccountControl", fmt.Sprintf("not an integer: %q", uacRaw))
	}

	sid, err := e.sid(op, "objectSid")
	if err != nil {
		return nil, err
	}

	u := &User{
		Name:                 name,
		DN:                   dn,
		GUID:                 e.guid("objectGUID"),
		SID:                  sid,
		GivenName:            e.first("givenName"),
		Surname:              e.first("sn"),
		Description:          e.first("description"),
		UserAccountControl:   uac,
		Enabled:              uac&UACAccountDisable == 0,
		PasswordNeverExpires: uac&UACDontExpirePassword != 0,
		PasswordExpired:      uac&UACPasswordExpired != 0,
		LockedOut:            uac&UACLockout != 0,
		PasswordLastSet:      fileTime(e.first("pwdLastSet")),
		AccountExpires:       accountExpiry(e.first("accountExpires")),
		WhenCreated:          parseTimestamp(e.first("whenCreated")),
		Groups:               groupNamesFromDNs(e.all("memberOf")),
	}

	if lt, err := strconv.ParseInt(e.first("lockoutTime"), 10, 64); err == nil && lt > 0 {
		u.LockedOut = true
	}
	u.BuiltIn = IsBuiltinUser(u.Name) || IsBuiltinSID(u.SID)

	return u, nil
}

// ParseGroupShow parses the LDIF output of "group show". Members are not taken
// from the member attribute since its CN values are not account names.
func ParseGroupShow(raw string) (*Group, error) {
	const op = "parse group"

	e, err := parseLDIF(op, raw)
	if err != nil {
		return nil, err
	}

	dn, err := e.required(op, "dn")
	if err != nil {
		return nil, err
	}
	if _, err := ldap.ParseDN(dn); err != nil {
		return nil, NewParseError(op, "dn", fmt.Sprintf("malformed distinguished name %q", dn))
	}

	name, err := e.required(op, "sAMAccountName")
	if err != nil {
		return nil, err
	}

	sid, err := e.sid(op, "objectSid")
	if err != nil {
		return nil, err
	}

	g := &Group{
		Name:        name,
		DN:          dn,
		GUID:        e.guid("objectGUID"),
		SID:         sid,
		Description: e.first("description"),
	}
	g.BuiltIn = IsBuiltinGroup(g.Name) || IsBuiltinSID(g.SID)

	return g, nil
}

func (e *ldifEntry) guid(key string) uuid.UUID {
	v := e.first(key)
	if v == "" {
		return uuid.Nil
	}

	if len(v) == 16 {
		b := []byte(v)
		// Active Directory stores the first three fields little-endian.
		ordered := []byte{
			b[3], b[2], b[1], b[0],
			b[5], b[4],
			b[7], b[6],
			b[8], b[9], b[10], b[11], b[12], b[13], b[14], b[15],
		}
		id, err := uuid.FromBytes(ordered)
		if err != nil {
			return uuid.Nil
		}
		return id
	}

	id, err := uuid.Parse(strings.Trim(v, "{}"))
	if err != nil {
		return uuid.Nil
	}
	return id
}

// sid accepts the string form or the binary encoding printed base64 with "::".
func (e *ldifEntry) sid(op, key string) (string, error) {
	v := e.first(key)
	if v == "" || strings.HasPrefix(v, "S-") {
		return v, nil
	}
	// Revision, sub-authority count, 6-byte authority, then 4 bytes per sub-authority.
	if len(v) < 8 || v[0] != 1 || len(v) < 8+4*int(v[1]) {
		return "", NewParseError(op, key, fmt.Sprintf("malformed security identifier (%d bytes)", len(v)))
	}
	return objectsid.Decode([]byte(v)).String(), nil
}

func groupNamesFromDNs(dns []string) []string {
	names := make([]string, 0, len(dns))
	for _, raw := range dns {
		dn, err := ldap.ParseDN(raw)
		if err != nil || len(dn.RDNs) == 0 {
			continue
		}
		for _, attr := range dn.RDNs[0].Attributes {
			if strings.EqualFold(attr.Type, "CN") {
				names = append(names, attr.Value)
				break
			}
		}
	}
	slices.Sort(names)
	return slices.Compact(names)
}

// fileTime converts a Windows FILETIME count to UTC. Zero and invalid values yield the zero time.
func fileTime(raw string) time.Time {
	ft, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || ft <= windowsEpochOffset {
		return time.Time{}
	}
	since := ft - windowsEpochOffset
	return time.Unix(since/1e7, (since%1e7)*100).UTC()
}

func accountExpiry(raw string) Expiry {
	ft, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || ft == 0 || ft == math.MaxInt64 {
		return Expiry{Never: true}
	}
	t := fileTime(raw)
	if t.IsZero() {
		return Expiry{Never: true}
	}
	return Expiry{At: t}
}

var timestampLayouts = []string{
	"20060102150405.0Z",
	"20060102150405Z",
	"20060102150405.0Z0700",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05 MST",
	time.UnixDate,
	time.ANSIC,
	time.RFC1123,
	time.RFC1123Z,
	"02/01/2006 15:04:05",
	"01/02/2006 15:04:05",
	"02.01.2006 15:04:05",
}

// parseTimestamp accepts the layouts samba and common locales produce. Unrecognised values yield the zero time.
func parseTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// labelledLine is a "Label (unit): value" line.
type labelledLine struct {
	label string
	unit  string
	value string
}

func parseLabelled(raw string) []labelledLine {
	var out []labelledLine

	for _, line := range splitLines(raw) {
		label, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}

		label = strings.TrimSpace(label)
		var unit string
		if open := strings.LastIndexByte(label, '('); open >= 0 && strings.HasSuffix(label, ")") {
			unit = strings.ToLower(strings.TrimSpace(label[open+1 : len(label)-1]))
			label = label[:open]
		}

		out = append(out, labelledLine{
			label: strings.ToLower(strings.Join(strings.Fields(label), " ")),
			unit:  unit,
			value: strings.TrimSpace(value),
		})
	}

	return out
}

// Password settings labels.
const (
	labelComplexity        = "password complexity"
	labelStorePlaintext    = "store plaintext passwords"
	labelHistoryLength     = "password history length"
	labelMinLength         = "minimum password length"
	labelMinAge            = "minimum password age"
	labelMaxAge            = "maximum password age"
	labelLockoutDuration   = "account lockout duration"
	labelLockoutThreshold  = "account lockout threshold"
	labelResetLockoutAfter = "reset account lockout after"
)

var requiredPolicyLabels = []string{
	labelMinLength,
	labelComplexity,
	labelHistoryLength,
	labelMaxAge,
	labelMinAge,
	labelLockoutThreshold,
	labelLockoutDuration,
}

// ParsePasswordSettings parses "domain passwordsettings show".
func ParsePasswordSettings(raw string) (*PasswordPolicy, error) {
	const op = "parse password settings"

	p := &PasswordPolicy{}
	seen := make(map[string]bool)

	for _, l := range parseLabelled(raw) {
		var err error

		switch l.label {
		case labelComplexity:
			p.Complexity, err = parseSwitch(l.value)
		case labelStorePlaintext:
			p.StorePlaintext, err = parseSwitch(l.value)
		case labelHistoryLength:
			p.HistoryLength, err = parseCount(l.value)
		case labelMinLength:
			p.MinLength, err = parseCount(l.value)
		case labelMinAge:
			p.MinAge, err = parseDuration(l.value, l.unit, "days")
		case labelMaxAge:
			p.MaxAge, err = parsePeriod(l.value, l.unit, "days")
		case labelLockoutDuration:
			p.LockoutDuration, err = parsePeriod(l.value, l.unit, "mins")
		case labelLockoutThreshold:
			var n int
			n, err = parseCount(l.value)
			p.LockoutThreshold = Threshold{Attempts: n, Unlimited: n == 0}
		case labelResetLockoutAfter:
			p.ResetLockoutAfter, err = parseDuration(l.value, l.unit, "mins")
		default:
			continue
		}

		if err != nil {
			return nil, NewParseError(op, l.label, err.Error())
		}
		seen[l.label] = true
	}

	for _, label := range requiredPolicyLabels {
		if !seen[label] {
			return nil, NewParseError(op, label, "required field missing")
		}
	}

	return p, nil
}

func parseSwitch(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "yes", "1", "enabled":
		return true, nil
	case "off", "false", "no", "0", "disabled":
		return false, nil
	}
	return false, fmt.Errorf("unrecognised switch value %q", v)
}

func parseCount(v string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("not an integer: %q", v)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative count %d", n)
	}
	return n, nil
}

var durationUnits = map[string]time.Duration{
	"s":       time.Second,
	"sec":     time.Second,
	"secs":    time.Second,
	"seconds": time.Second,
	"min":     time.Minute,
	"mins":    time.Minute,
	"minutes": time.Minute,
	"h":       time.Hour,
	"hrs":     time.Hour,
	"hours":   time.Hour,
	"day":     24 * time.Hour,
	"days":    24 * time.Hour,
}

func parseDuration(v, unit, defaultUnit string) (time.Duration, error) {
	if unit == "" {
		unit = defaultUnit
	}
	scale, ok := durationUnits[unit]
	if !ok {
		return 0, fmt.Errorf("unknown unit %q", unit)
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", v)
	}
	if f < 0 {
		return 0, fmt.Errorf("negative duration %v", f)
	}
	return time.Duration(f * float64(scale)), nil
}

// parsePeriod treats zero and "never"-style words as the unlimited period.
func parsePeriod(v, unit, defaultUnit string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "never", "none", "unlimited", "infinite", "forever":
		return NeverPeriod(), nil
	}

	d, err := parseDuration(v, unit, defaultUnit)
	if err != nil {
		return Period{}, err
	}
	if d == 0 {
		return NeverPeriod(), nil
	}
	return PeriodOf(d), nil
}

// ParseDomainInfo parses "domain info".
func ParseDomainInfo(raw string) (*DomainInfo, error) {
	info := &DomainInfo{}

	for _, l := range parseLabelled(raw) {
		switch l.label {
		case "forest":
			info.Forest = l.value
		case "domain":
			info.Domain = l.value
		case "netbios domain":
			info.NetbiosDomain = l.value
		case "dc name":
			info.DCName = l.value
		case "dc netbios name":
			info.DCNetbiosName = l.value
		case "server site":
			info.ServerSite = l.value
		case "client site":
			info.ClientSite = l.value
		}
	}

	if info.Domain == "" {
		return nil, NewParseError("parse domain info", "domain", "required field missing")
	}
	return info, nil
}
