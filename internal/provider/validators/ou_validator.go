package validators

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
)

// Ensure the implementation satisfies the expected interface.
var _ validator.String = ouValidator{}

// ouValidator validates an organizational unit path relative to the domain
// naming context, such as "OU=Staff" or "OU=Admins,OU=Staff".
type ouValidator struct{}

func (v ouValidator) Description(_ context.Context) string {
	return "value must be an OU path relative to the domain, e.g. OU=Staff"
}

func (v ouValidator) MarkdownDescription(_ context.Context) string {
	return "value must be an OU path relative to the domain, e.g. `OU=Staff`"
}

func (v ouValidator) ValidateString(ctx context.Context, request validator.StringRequest, response *validator.StringResponse) {
	if request.ConfigValue.IsNull() || request.ConfigValue.IsUnknown() {
		return
	}

	value := request.ConfigValue.ValueString()
	if reason := checkRelativeOU(value); reason != "" {
		response.Diagnostics.AddAttributeError(
			request.Path,
			"Invalid Organizational Unit",
			fmt.Sprintf("The value %q is not a valid organizational unit path: %s", value, reason),
		)
	}
}

func checkRelativeOU(value string) string {
	if strings.TrimSpace(value) == "" {
		return "path cannot be empty"
	}

	dn, err := ldap.ParseDN(value)
	if err != nil {
		return err.Error()
	}
	if len(dn.RDNs) == 0 {
		return "path cannot be empty"
	}

	for _, rdn := range dn.RDNs {
		for _, a := range rdn.Attributes {
			switch strings.ToUpper(a.Type) {
			case "OU", "CN":
			case "DC":
				return "omit the DC= components, the path is relative to the domain"
			default:
				return fmt.Sprintf("unexpected attribute type %q", a.Type)
			}
			if strings.TrimSpace(a.Value) == "" {
				return fmt.Sprintf("%s= has an empty value", a.Type)
			}
		}
	}

	return ""
}

// IsRelativeOU returns a validator which ensures that any configured
// attribute value is an OU path relative to the domain naming context.
//
// Unknown values and null values are skipped from validation.
func IsRelativeOU() validator.String {
	return ouValidator{}
}
