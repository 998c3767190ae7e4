package validators

import (
	"context"

	"github.com/hashicorp/terraform-plugin-framework/schema/validator"

	"github.com/isometry/terraform-provider-samba/internal/samba"
)

// Ensure the implementation satisfies the expected interface.
var _ validator.String = accountNameValidator{}

type accountNameValidator struct {
	kind     string
	validate func(string) error
}

func (v accountNameValidator) Description(_ context.Context) string {
	return "value must be a valid " + v.kind + " account name"
}

func (v accountNameValidator) MarkdownDescription(ctx context.Context) string {
	return v.Description(ctx)
}

func (v accountNameValidator) ValidateString(ctx context.Context, request validator.StringRequest, response *validator.StringResponse) {
	if request.ConfigValue.IsNull() || request.ConfigValue.IsUnknown() {
		return
	}

	if err := v.validate(request.ConfigValue.ValueString()); err != nil {
		response.Diagnostics.AddAttributeError(
			request.Path,
			"Invalid Account Name",
			err.Error(),
		)
	}
}

// IsUserName validates a user sAMAccountName with the same rules applied
// before any command is sent to the domain controller.
func IsUserName() validator.String {
	return accountNameValidator{kind: "user", validate: samba.ValidateUserName}
}

// IsGroupName validates a group name.
func IsGroupName() validator.String {
	return accountNameValidator{kind: "group", validate: samba.ValidateGroupName}
}
