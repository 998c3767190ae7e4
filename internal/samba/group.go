package samba

import (
	"context"
	"sort"
	"strings"
)

// ListGroupNames returns the names of all non-built-in groups.
func (d *Directory) ListGroupNames(ctx context.Context, s *Session) ([]string, error) {
	res, err := d.run(ctx, s, "list groups", args("group", "list"))
	if err != nil {
		return nil, err
	}
	return ParseGroupList(res.Stdout), nil
}

// ListGroups returns every non-built-in group with its members. Built-in
// accounts are left out of the member lists as well. Groups deleted while the
// listing is in progress are skipped.
func (d *Directory) ListGroups(ctx context.Context, s *Session) ([]*Group, error) {
	var groups []*Group

	err := LogOperation(ctx, "list groups", nil, func() error {
		names, err := d.ListGroupNames(ctx, s)
		if err != nil {
			return err
		}

		groups = make([]*Group, 0, len(names))
		for _, name := range names {
			members, err := d.GroupMembers(ctx, s, name)
			if IsNotFoundError(err) {
				continue
			}
			if err != nil {
				return err
			}
			groups = append(groups, &Group{
				Name:    name,
				Members: filterNames(members, IsBuiltinUser),
			})
		}

		sort.Slice(groups, func(i, j int) bool {
			return strings.ToLower(groups[i].Name) < strings.ToLower(groups[j].Name)
		})
		return nil
	})

	return groups, err
}

// GetGroup returns one group with its attributes and members.
func (d *Directory) GetGroup(ctx context.Context, s *Session, name string) (*Group, error) {
	if err := ValidateGroupName(name); err != nil {
		return nil, err
	}

	var group *Group

	err := LogOperation(ctx, "get group", map[string]any{"group": name}, func() error {
		res, err := d.run(ctx, s, "get group", command("group", "show", nil, name))
		if err != nil {
			return err
		}
		if group, err = ParseGroupShow(res.Stdout); err != nil {
			return err
		}
		group.Members, err = d.GroupMembers(ctx, s, name)
		return err
	})

	return group, err
}

// AddGroup creates a group.
func (d *Directory) AddGroup(ctx context.Context, s *Session, req *CreateGroupRequest) (*Group, error) {
	if req == nil {
		return nil, NewValidationError("add group", "request", "request is required")
	}
	if err := ValidateGroupName(req.Name); err != nil {
		return nil, err
	}
	if err := ValidateOU(req.OU); err != nil {
		return nil, err
	}

	var opts []string
	if req.Description != "" {
		opts = append(opts, "--description="+req.Description)
	}
	if req.OU != "" {
		opts = append(opts, "--groupou="+req.OU)
	}
	create := command("group", "add", opts, req.Name)

	err := LogOperation(ctx, "add group", map[string]any{"group": req.Name}, func() error {
		_, err := d.run(ctx, s, "add group", create)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &Group{
		Name:        req.Name,
		Description: req.Description,
		Members:     []string{},
	}, nil
}

// RemoveGroup deletes a group. It reports whether the group existed; a group
// that is already gone is not an error.
func (d *Directory) RemoveGroup(ctx context.Context, s *Session, name string) (bool, error) {
	if err := ValidateGroupName(name); err != nil {
		return false, err
	}

	existed := true

	err := LogOperation(ctx, "remove group", map[string]any{"group": name}, func() error {
		_, err := d.run(ctx, s, "remove group", command("group", "delete", nil, name))
		if IsNotFoundError(err) {
			existed = false
			return nil
		}
		return err
	})

	return existed && err == nil, err
}

// GroupMembers returns the account names directly in a group, unfiltered.
func (d *Directory) GroupMembers(ctx context.Context, s *Session, name string) ([]string, error) {
	if err := ValidateGroupName(name); err != nil {
		return nil, err
	}

	res, err := d.run(ctx, s, "list group members", command("group", "listmembers", nil, name))
	if err != nil {
		return nil, err
	}
	return ParseNameList(res.Stdout), nil
}
