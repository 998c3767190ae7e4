package samba

import (
	"context"
)

// ListUsers returns the names of all non-built-in user accounts.
func (d *Directory) ListUsers(ctx context.Context, s *Session) ([]string, error) {
	var users []string

	err := LogOperation(ctx, "list users", nil, func() error {
		res, err := d.run(ctx, s, "list users", args("user", "list"))
		if err != nil {
			return err
		}
		users = ParseUserList(res.Stdout)
		return nil
	})

	return users, err
}

// GetUser returns the full record of one user account.
func (d *Directory) GetUser(ctx context.Context, s *Session, name string) (*User, error) {
	if err := ValidateUserName(name); err != nil {
		return nil, err
	}

	var user *User

	err := LogOperation(ctx, "get user", map[string]any{"user": name}, func() error {
		res, err := d.run(ctx, s, "get user", command("user", "show", nil, name))
		if err != nil {
			return err
		}
		user, err = ParseUserShow(res.Stdout)
		return err
	})

	return user, err
}

// AddUser creates a user account and brings its enabled state to the requested
// value. The actual state after creation is always read back. A failure after
// the account has been created is reported as a PartialSuccessError.
func (d *Directory) AddUser(ctx context.Context, s *Session, req *CreateUserRequest) (*User, error) {
	if req == nil {
		return nil, NewValidationError("add user", "request", "request is required")
	}
	if err := ValidateUserName(req.Name); err != nil {
		return nil, err
	}
	if err := ValidatePassword(req.Password, req.Name, s.knownPolicy()); err != nil {
		return nil, err
	}
	if err := ValidateOU(req.OU); err != nil {
		return nil, err
	}

	var opts []string
	if req.GivenName != "" {
		opts = append(opts, "--given-name="+req.GivenName)
	}
	if req.Surname != "" {
		opts = append(opts, "--surname="+req.Surname)
	}
	if req.Description != "" {
		opts = append(opts, "--description="+req.Description)
	}
	if req.OU != "" {
		opts = append(opts, "--userou="+req.OU)
	}
	if req.MustChangeAtNextLogin {
		opts = append(opts, "--must-change-at-next-login")
	}
	create := command("user", "add", opts, req.Name, req.Password)
	create.Sensitive = []int{len(create.Args) - 1}

	var user *User

	err := LogOperation(ctx, "add user", map[string]any{"user": req.Name}, func() error {
		if _, err := d.run(ctx, s, "add user", create); err != nil {
			return err
		}
		completed := []string{"create"}

		current, err := d.GetUser(ctx, s, req.Name)
		if err != nil {
			return &PartialSuccessError{Operation: "add user", Completed: completed, Failed: "read state", Cause: err}
		}
		completed = append(completed, "read state")

		want := req.wantEnabled()
		if current.Enabled != want {
			step := "enable"
			if !want {
				step = "disable"
			}
			if _, err := d.run(ctx, s, step+" user", command("user", step, nil, req.Name)); err != nil {
				return &PartialSuccessError{Operation: "add user", Completed: completed, Failed: step, Cause: err}
			}
			current.Enabled = want
			if want {
				current.UserAccountControl &^= UACAccountDisable
			} else {
				current.UserAccountControl |= UACAccountDisable
			}
		}

		user = current
		return nil
	})

	return user, err
}

// RemoveUser deletes a user account. It reports whether the account existed;
// an account that is already gone is not an error.
func (d *Directory) RemoveUser(ctx context.Context, s *Session, name string) (bool, error) {
	if err := ValidateUserName(name); err != nil {
		return false, err
	}

	existed := true

	err := LogOperation(ctx, "remove user", map[string]any{"user": name}, func() error {
		_, err := d.run(ctx, s, "remove user", command("user", "delete", nil, name))
		if IsNotFoundError(err) {
			existed = false
			return nil
		}
		return err
	})

	return existed && err == nil, err
}

// ResetPassword sets a new password for a user account.
func (d *Directory) ResetPassword(ctx context.Context, s *Session, name, password string, mustChangeAtNextLogin bool) error {
	if err := ValidateUserName(name); err != nil {
		return err
	}
	if err := ValidatePassword(password, name, s.knownPolicy()); err != nil {
		return err
	}

	opts := []string{"--newpassword=" + password}
	if mustChangeAtNextLogin {
		opts = append(opts, "--must-change-at-next-login")
	}
	req := command("user", "setpassword", opts, name)
	req.Sensitive = []int{2}

	return LogOperation(ctx, "reset password", map[string]any{"user": name}, func() error {
		_, err := d.run(ctx, s, "reset password", req)
		return err
	})
}

// EnableUser enables a user account.
func (d *Directory) EnableUser(ctx context.Context, s *Session, name string) error {
	return d.setUserEnabled(ctx, s, name, "enable")
}

// DisableUser disables a user account.
func (d *Directory) DisableUser(ctx context.Context, s *Session, name string) error {
	return d.setUserEnabled(ctx, s, name, "disable")
}

func (d *Directory) setUserEnabled(ctx context.Context, s *Session, name, verb string) error {
	if err := ValidateUserName(name); err != nil {
		return err
	}

	op := verb + " user"
	return LogOperation(ctx, op, map[string]any{"user": name}, func() error {
		_, err := d.run(ctx, s, op, command("user", verb, nil, name))
		return err
	})
}

// UserGroups returns the names of the groups a user belongs to.
func (d *Directory) UserGroups(ctx context.Context, s *Session, name string) ([]string, error) {
	if err := ValidateUserName(name); err != nil {
		return nil, err
	}

	var groups []string

	err := LogOperation(ctx, "user groups", map[string]any{"user": name}, func() error {
		res, err := d.run(ctx, s, "user groups", command("user", "getgroups", nil, name))
		if err != nil {
			return err
		}
		groups = ParseNameList(res.Stdout)
		return nil
	})

	return groups, err
}
