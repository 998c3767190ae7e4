package samba

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

const (
	day    = 24 * time.Hour
	minute = time.Minute
)

// GetPasswordPolicy reads the domain password policy. The result is also
// remembered on the session for local password pre-checks.
func (d *Directory) GetPasswordPolicy(ctx context.Context, s *Session) (*PasswordPolicy, error) {
	var policy *PasswordPolicy

	err := LogOperation(ctx, "get password policy", nil, func() error {
		res, err := d.run(ctx, s, "get password policy", args("domain", "passwordsettings", "show"))
		if err != nil {
			return err
		}
		if policy, err = ParsePasswordSettings(res.Stdout); err != nil {
			return err
		}
		s.rememberPolicy(policy)
		return nil
	})

	return policy, err
}

// policyChange is one "passwordsettings set" invocation.
type policyChange struct {
	field string
	flag  string
}

// SetPasswordPolicy applies the non-nil fields of update, issuing one remote
// command per field whose value differs from the current policy, and returns
// the policy as read back afterwards. If a command fails after others have
// been applied a PartialSuccessError names the applied fields.
func (d *Directory) SetPasswordPolicy(ctx context.Context, s *Session, update *PolicyUpdate) (*PasswordPolicy, error) {
	if err := validatePolicyUpdate(update); err != nil {
		return nil, err
	}

	current, err := d.GetPasswordPolicy(ctx, s)
	if err != nil {
		return nil, err
	}
	if update.IsEmpty() {
		return current, nil
	}

	changes := planPolicyChanges(current, update)
	if len(changes) == 0 {
		return current, nil
	}

	err = LogOperation(ctx, "set password policy", map[string]any{"changes": len(changes)}, func() error {
		var applied []string
		for _, c := range changes {
			_, err := d.run(ctx, s, "set password policy", args("domain", "passwordsettings", "set", c.flag))
			if err != nil {
				if len(applied) == 0 {
					return err
				}
				return &PartialSuccessError{Operation: "set password policy", Completed: applied, Failed: c.field, Cause: err}
			}
			applied = append(applied, c.field)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return d.GetPasswordPolicy(ctx, s)
}

func validatePolicyUpdate(u *PolicyUpdate) error {
	const op = "set password policy"

	if u == nil {
		return NewValidationError(op, "update", "update is required")
	}
	if u.MinLength != nil && (*u.MinLength < 0 || *u.MinLength > 255) {
		return NewValidationError(op, "min_length", "must be between 0 and 255")
	}
	if u.HistoryLength != nil && (*u.HistoryLength < 0 || *u.HistoryLength > 24) {
		return NewValidationError(op, "history_length", "must be between 0 and 24")
	}
	if u.MinAge != nil {
		if err := checkWhole(op, "min_age", *u.MinAge, day, 998); err != nil {
			return err
		}
	}
	if u.MaxAge != nil && !u.MaxAge.Never {
		if err := checkWhole(op, "max_age", u.MaxAge.Duration, day, 999); err != nil {
			return err
		}
	}
	if u.MinAge != nil && u.MaxAge != nil && !u.MaxAge.Never && *u.MinAge >= u.MaxAge.Duration {
		return NewValidationError(op, "max_age", "must be greater than the minimum password age")
	}
	if u.LockoutThreshold != nil && !u.LockoutThreshold.Unlimited && (u.LockoutThreshold.Attempts < 1 || u.LockoutThreshold.Attempts > 999) {
		return NewValidationError(op, "lockout_threshold", "must be between 1 and 999, or unlimited")
	}
	if u.LockoutDuration != nil && !u.LockoutDuration.Never {
		if err := checkWhole(op, "lockout_duration", u.LockoutDuration.Duration, minute, 99999); err != nil {
			return err
		}
	}
	if u.ResetLockoutAfter != nil {
		if err := checkWhole(op, "reset_lockout_after", *u.ResetLockoutAfter, minute, 99999); err != nil {
			return err
		}
		if *u.ResetLockoutAfter == 0 {
			return NewValidationError(op, "reset_lockout_after", "must be at least one minute")
		}
	}
	return nil
}

func checkWhole(op, field string, d, unit time.Duration, maxUnits int64) error {
	if d < 0 {
		return NewValidationError(op, field, "must not be negative")
	}
	if d%unit != 0 {
		return NewValidationError(op, field, fmt.Sprintf("must be a whole number of %s", unitName(unit)))
	}
	if int64(d/unit) > maxUnits {
		return NewValidationError(op, field, fmt.Sprintf("must not exceed %d %s", maxUnits, unitName(unit)))
	}
	return nil
}

func unitName(unit time.Duration) string {
	if unit == day {
		return "days"
	}
	return "minutes"
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// periodUnits renders a period in whole units, zero meaning unlimited.
func periodUnits(p Period, unit time.Duration) int64 {
	if p.Never {
		return 0
	}
	return int64(p.Duration / unit)
}

// widens reports whether next is a longer upper bound than cur.
func widens(cur, next Period) bool {
	if next.Never {
		return !cur.Never
	}
	return !cur.Never && next.Duration > cur.Duration
}

// planPolicyChanges lists one change per field that differs, ordered so each
// intermediate state stays valid: an upper bound that grows is applied before
// the lower bound beneath it, one that shrinks after.
func planPolicyChanges(cur *PasswordPolicy, u *PolicyUpdate) []policyChange {
	var changes []policyChange
	add := func(field, flag string, value string) {
		changes = append(changes, policyChange{field: field, flag: "--" + flag + "=" + value})
	}

	if u.Complexity != nil && *u.Complexity != cur.Complexity {
		add("complexity", "complexity", onOff(*u.Complexity))
	}
	if u.StorePlaintext != nil && *u.StorePlaintext != cur.StorePlaintext {
		add("store_plaintext", "store-plaintext", onOff(*u.StorePlaintext))
	}
	if u.HistoryLength != nil && *u.HistoryLength != cur.HistoryLength {
		add("history_length", "history-length", strconv.Itoa(*u.HistoryLength))
	}
	if u.MinLength != nil && *u.MinLength != cur.MinLength {
		add("min_length", "min-pwd-length", strconv.Itoa(*u.MinLength))
	}

	maxAge := func() {
		if u.MaxAge != nil && periodUnits(*u.MaxAge, day) != periodUnits(cur.MaxAge, day) {
			add("max_age", "max-pwd-age", strconv.FormatInt(periodUnits(*u.MaxAge, day), 10))
		}
	}
	minAge := func() {
		if u.MinAge != nil && *u.MinAge/day != cur.MinAge/day {
			add("min_age", "min-pwd-age", strconv.FormatInt(int64(*u.MinAge/day), 10))
		}
	}
	if u.MaxAge != nil && widens(cur.MaxAge, *u.MaxAge) {
		maxAge()
		minAge()
	} else {
		minAge()
		maxAge()
	}

	lockoutDuration := func() {
		if u.LockoutDuration != nil && periodUnits(*u.LockoutDuration, minute) != periodUnits(cur.LockoutDuration, minute) {
			add("lockout_duration", "account-lockout-duration", strconv.FormatInt(periodUnits(*u.LockoutDuration, minute), 10))
		}
	}
	resetAfter := func() {
		if u.ResetLockoutAfter != nil && *u.ResetLockoutAfter/minute != cur.ResetLockoutAfter/minute {
			add("reset_lockout_after", "reset-account-lockout-after", strconv.FormatInt(int64(*u.ResetLockoutAfter/minute), 10))
		}
	}
	if u.LockoutDuration != nil && widens(cur.LockoutDuration, *u.LockoutDuration) {
		lockoutDuration()
		resetAfter()
	} else {
		resetAfter()
		lockoutDuration()
	}

	if u.LockoutThreshold != nil {
		next := *u.LockoutThreshold
		if next.Unlimited {
			next.Attempts = 0
		}
		curAttempts := cur.LockoutThreshold.Attempts
		if cur.LockoutThreshold.Unlimited {
			curAttempts = 0
		}
		if next.Attempts != curAttempts {
			add("lockout_threshold", "account-lockout-threshold", strconv.Itoa(next.Attempts))
		}
	}

	return changes
}
