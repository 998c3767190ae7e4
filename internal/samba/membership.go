package samba

import (
	"context"
	"strings"
)

// AddMembers adds accounts to a group in one remote command.
func (d *Directory) AddMembers(ctx context.Context, s *Session, group string, members ...string) error {
	return d.changeMembers(ctx, s, "addmembers", "add members", group, members)
}

// RemoveMembers removes accounts from a group in one remote command.
func (d *Directory) RemoveMembers(ctx context.Context, s *Session, group string, members ...string) error {
	return d.changeMembers(ctx, s, "removemembers", "remove members", group, members)
}

func (d *Directory) changeMembers(ctx context.Context, s *Session, verb, op, group string, members []string) error {
	if err := ValidateGroupName(group); err != nil {
		return err
	}
	members, err := normalizeMembers(members)
	if err != nil {
		return err
	}
	if len(members) == 0 {
		return NewValidationError(op, "members", "at least one member is required")
	}

	fields := map[string]any{
		"group":        group,
		"member_count": len(members),
	}

	return LogOperation(ctx, op, fields, func() error {
		_, err := d.run(ctx, s, op, command("group", verb, nil, group, strings.Join(members, ",")))
		return err
	})
}

// SetMembers makes the direct membership of a group exactly desired. Members
// are added before any are removed; if removal fails after additions were made
// a PartialSuccessError is returned.
func (d *Directory) SetMembers(ctx context.Context, s *Session, group string, desired []string) error {
	desired, err := normalizeMembers(desired)
	if err != nil {
		return err
	}

	current, err := d.GroupMembers(ctx, s, group)
	if err != nil {
		return err
	}

	toAdd, toRemove := diffMembers(current, desired)
	if len(toAdd) == 0 && len(toRemove) == 0 {
		return nil
	}

	var completed []string
	if len(toAdd) > 0 {
		if err := d.AddMembers(ctx, s, group, toAdd...); err != nil {
			return err
		}
		completed = append(completed, "add members")
	}

	if len(toRemove) > 0 {
		if err := d.RemoveMembers(ctx, s, group, toRemove...); err != nil {
			if len(completed) == 0 {
				return err
			}
			return &PartialSuccessError{Operation: "set members", Completed: completed, Failed: "remove members", Cause: err}
		}
	}

	return nil
}

// diffMembers compares account names case-insensitively.
func diffMembers(current, desired []string) (toAdd, toRemove []string) {
	have := make(map[string]struct{}, len(current))
	for _, m := range current {
		have[strings.ToLower(m)] = struct{}{}
	}
	want := make(map[string]struct{}, len(desired))
	for _, m := range desired {
		want[strings.ToLower(m)] = struct{}{}
	}

	for _, m := range desired {
		if _, ok := have[strings.ToLower(m)]; !ok {
			toAdd = append(toAdd, m)
		}
	}
	for _, m := range current {
		if _, ok := want[strings.ToLower(m)]; !ok {
			toRemove = append(toRemove, m)
		}
	}
	return toAdd, toRemove
}
