package provider

import (
	"context"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework/function"

	"github.com/isometry/terraform-provider-samba/internal/samba"
)

var _ function.Function = &IsBuiltinFunction{}

func NewIsBuiltinFunction() function.Function {
	return &IsBuiltinFunction{}
}

// IsBuiltinFunction implements the is_builtin function.
type IsBuiltinFunction struct{}

// Metadata returns the function name.
func (f IsBuiltinFunction) Metadata(_ context.Context, req function.MetadataRequest, resp *function.MetadataResponse) {
	resp.Name = "is_builtin"
}

// Definition returns the function signature.
func (f IsBuiltinFunction) Definition(_ context.Context, req function.DefinitionRequest, resp *function.DefinitionResponse) {
	resp.Definition = function.Definition{
		Summary:     "Report whether a principal was created by domain provisioning",
		Description: "Returns true when the argument is the name or SID of an account or group that every Samba domain is provisioned with, such as Administrator, krbtgt or Domain Admins.",
		MarkdownDescription: "Returns true when the argument names a principal created by domain provisioning.\n\n" +
			"- Values starting with `S-1-` are treated as SIDs: anything under `S-1-5-32` and domain RIDs below 1000 are built in\n" +
			"- Anything else is compared case-insensitively against the built-in user and group names\n\n" +
			"Useful for filtering the output of `samba_users` and `samba_user` before managing membership.",
		Parameters: []function.Parameter{
			function.StringParameter{
				Name:                "principal",
				Description:         "An account name, group name or SID.",
				MarkdownDescription: "An account name, group name or SID.",
			},
		},
		Return: function.BoolReturn{},
	}
}

// Run implements the function logic.
func (f IsBuiltinFunction) Run(ctx context.Context, req function.RunRequest, resp *function.RunResponse) {
	var principal string

	resp.Error = function.ConcatFuncErrors(resp.Error, req.Arguments.Get(ctx, &principal))
	if resp.Error != nil {
		return
	}

	principal = strings.TrimSpace(principal)
	if principal == "" {
		resp.Error = function.NewArgumentFuncError(0, "principal must not be empty")
		return
	}

	resp.Error = resp.Result.Set(ctx, isBuiltinPrincipal(principal))
}

func isBuiltinPrincipal(principal string) bool {
	if strings.HasPrefix(strings.ToUpper(principal), "S-1-") {
		return samba.IsBuiltinSID(strings.ToUpper(principal))
	}
	return samba.IsBuiltinUser(principal) || samba.IsBuiltinGroup(principal)
}
