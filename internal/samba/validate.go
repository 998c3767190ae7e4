package samba

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-ldap/ldap/v3"
)

const (
	// MaxUserNameLength is the sAMAccountName limit for user accounts.
	MaxUserNameLength = 20
	// MaxGroupNameLength is the common-name limit for groups.
	MaxGroupNameLength = 64

	forbiddenNameChars = "`~!@#$%,^&*()}{[]'|\\:;\"<>?/"
)

// ValidateUserName checks a user account name locally.
func ValidateUserName(name string) error {
	return validateAccountName("user", name, MaxUserNameLength)
}

// ValidateGroupName checks a group name locally.
func ValidateGroupName(name string) error {
	return validateAccountName("group", name, MaxGroupNameLength)
}

func validateAccountName(kind, name string, maxLen int) error {
	op := "validate " + kind + " name"

	if name == "" {
		return NewValidationError(op, "name", kind+" name must not be empty")
	}
	if len(name) > maxLen {
		return NewValidationError(op, "name", fmt.Sprintf("%s name %q exceeds %d characters", kind, name, maxLen))
	}
	if name[0] == ' ' || name[len(name)-1] == ' ' {
		return NewValidationError(op, "name", fmt.Sprintf("%s name %q has leading or trailing spaces", kind, name))
	}
	if strings.HasSuffix(name, ".") {
		return NewValidationError(op, "name", fmt.Sprintf("%s name %q must not end with a period", kind, name))
	}
	if name[0] == '-' {
		return NewValidationError(op, "name", fmt.Sprintf("%s name %q must not start with a hyphen", kind, name))
	}

	for _, r := range name {
		if r < 32 || r > 122 {
			return NewValidationError(op, "name", fmt.Sprintf("%s name %q contains unsupported character %q", kind, name, r))
		}
		if strings.ContainsRune(forbiddenNameChars, r) {
			return NewValidationError(op, "name", fmt.Sprintf("%s name %q contains forbidden character %q", kind, name, r))
		}
	}

	return nil
}

// ValidateOU checks that ou parses as a DN.
func ValidateOU(ou string) error {
	if ou == "" {
		return nil
	}
	dn, err := ldap.ParseDN(ou)
	if err != nil || len(dn.RDNs) == 0 {
		return NewValidationError("validate ou", "ou", fmt.Sprintf("%q is not a valid distinguished name", ou))
	}
	return nil
}

// ValidatePassword checks a password before it is sent to the server.
// When policy is nil only emptiness is checked.
func ValidatePassword(password, account string, policy *PasswordPolicy) error {
	const op = "validate password"

	if password == "" {
		return NewValidationError(op, "password", "password must not be empty")
	}
	if policy == nil {
		return nil
	}

	if len([]rune(password)) < policy.MinLength {
		return NewValidationError(op, "password", fmt.Sprintf("password is shorter than the domain minimum of %d characters", policy.MinLength))
	}

	if policy.Complexity {
		if len(account) >= 3 && strings.Contains(strings.ToLower(password), strings.ToLower(account)) {
			return NewValidationError(op, "password", "password must not contain the account name")
		}
		if passwordClasses(password) < 3 {
			return NewValidationError(op, "password",
				"password must contain characters from three of: uppercase, lowercase, digits, symbols")
		}
	}

	return nil
}

func passwordClasses(password string) int {
	var upper, lower, digit, other bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			other = true
		}
	}

	n := 0
	for _, b := range []bool{upper, lower, digit, other} {
		if b {
			n++
		}
	}
	return n
}

// normalizeMembers validates, trims and de-duplicates member names, keeping the first spelling.
func normalizeMembers(members []string) ([]string, error) {
	seen := make(map[string]struct{}, len(members))
	out := make([]string, 0, len(members))

	for _, m := range members {
		m = strings.TrimSpace(m)
		// Computer accounts carry a trailing "$".
		if err := validateAccountName("member", strings.TrimSuffix(m, "$"), MaxGroupNameLength); err != nil {
			return nil, err
		}
		key := strings.ToLower(m)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, m)
	}

	return out, nil
}
