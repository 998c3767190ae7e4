package samba

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// DomainInfo describes the domain served by the session's host.
func (d *Directory) DomainInfo(ctx context.Context, s *Session) (*DomainInfo, error) {
	if s == nil {
		return nil, NewError("domain info", ErrorKindSessionDead, "no session", nil)
	}

	var info *DomainInfo

	err := LogOperation(ctx, "domain info", map[string]any{"host": s.Host()}, func() error {
		res, err := d.run(ctx, s, "domain info", command("domain", "info", nil, s.Host()))
		if err != nil {
			return err
		}
		info, err = ParseDomainInfo(res.Stdout)
		return err
	})

	return info, err
}

// ListOUs returns the distinguished names of all organizational units.
func (d *Directory) ListOUs(ctx context.Context, s *Session) ([]string, error) {
	res, err := d.run(ctx, s, "list ous", args("ou", "list"))
	if err != nil {
		return nil, err
	}
	return ParseNameList(res.Stdout), nil
}

// CreateOU creates an organizational unit. dn may be relative to the domain root.
func (d *Directory) CreateOU(ctx context.Context, s *Session, dn, description string) error {
	if dn == "" {
		return NewValidationError("create ou", "dn", "dn must not be empty")
	}
	if err := ValidateOU(dn); err != nil {
		return err
	}

	var opts []string
	if description != "" {
		opts = append(opts, fmt.Sprintf("--description=%s", description))
	}
	req := command("ou", "create", opts, dn)

	return LogOperation(ctx, "create ou", map[string]any{"dn": dn}, func() error {
		_, err := d.run(ctx, s, "create ou", req)
		return err
	})
}

// GetOU returns the DN of an organizational unit as listed by the server.
// dn may be relative to the domain root or include the DC= components.
func (d *Directory) GetOU(ctx context.Context, s *Session, dn string) (string, error) {
	if err := ValidateOU(dn); err != nil {
		return "", err
	}
	if dn == "" {
		return "", NewValidationError("get ou", "dn", "dn must not be empty")
	}

	ous, err := d.ListOUs(ctx, s)
	if err != nil {
		return "", err
	}
	for _, ou := range ous {
		if SameOU(ou, dn) {
			return ou, nil
		}
	}
	return "", NewError("get ou", ErrorKindNotFound, fmt.Sprintf("organizational unit %q not found", dn), nil)
}

// DeleteOU removes an empty organizational unit. It reports whether the OU
// existed; a missing OU is not an error.
func (d *Directory) DeleteOU(ctx context.Context, s *Session, dn string) (bool, error) {
	if dn == "" {
		return false, NewValidationError("delete ou", "dn", "dn must not be empty")
	}
	if err := ValidateOU(dn); err != nil {
		return false, err
	}

	existed := true
	err := LogOperation(ctx, "delete ou", map[string]any{"dn": dn}, func() error {
		_, err := d.run(ctx, s, "delete ou", command("ou", "delete", nil, dn))
		if IsNotFoundError(err) {
			existed = false
			return nil
		}
		return err
	})

	return existed && err == nil, err
}

// SameOU reports whether two OU DNs name the same object. DC= components are
// ignored so relative and absolute forms compare equal.
func SameOU(a, b string) bool {
	ra, erra := relativeRDNs(a)
	rb, errb := relativeRDNs(b)
	if erra != nil || errb != nil {
		return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
	}
	if len(ra) != len(rb) {
		return false
	}
	for i := range ra {
		if !strings.EqualFold(ra[i], rb[i]) {
			return false
		}
	}
	return true
}

func relativeRDNs(dn string) ([]string, error) {
	parsed, err := ldap.ParseDN(dn)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, rdn := range parsed.RDNs {
		var parts []string
		for _, attr := range rdn.Attributes {
			if strings.EqualFold(attr.Type, "DC") {
				continue
			}
			parts = append(parts, attr.Type+"="+attr.Value)
		}
		if len(parts) > 0 {
			out = append(out, strings.Join(parts, "+"))
		}
	}
	return out, nil
}

// ListComputers returns the account names of all computers joined to the domain.
func (d *Directory) ListComputers(ctx context.Context, s *Session) ([]string, error) {
	res, err := d.run(ctx, s, "list computers", args("computer", "list"))
	if err != nil {
		return nil, err
	}
	return ParseNameList(res.Stdout), nil
}
