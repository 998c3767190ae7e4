package planmodifiers

import (
	"context"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework/resource/schema/planmodifier"
)

// caseInsensitiveReplace implements the plan modifier.
type caseInsensitiveReplace struct{}

// RequiresReplaceUnlessCaseChange returns a plan modifier that forces
// replacement when the value changes, unless the old and new values differ
// only in letter case. Account names, group names and OU paths are matched
// case-insensitively by the directory, so a case-only edit renames nothing
// and is applied in place.
func RequiresReplaceUnlessCaseChange() planmodifier.String {
	return caseInsensitiveReplace{}
}

// Description returns a human-readable description of the plan modifier.
func (m caseInsensitiveReplace) Description(_ context.Context) string {
	return "changing this value replaces the resource, unless only the letter case changes"
}

// MarkdownDescription returns a markdown description of the plan modifier.
func (m caseInsensitiveReplace) MarkdownDescription(_ context.Context) string {
	return "changing this value replaces the resource, unless only the letter case changes"
}

// PlanModifyString implements the plan modification logic.
func (m caseInsensitiveReplace) PlanModifyString(_ context.Context, req planmodifier.StringRequest, resp *planmodifier.StringResponse) {
	// Creation or destruction.
	if req.State.Raw.IsNull() || req.Plan.Raw.IsNull() {
		return
	}

	if req.PlanValue.Equal(req.StateValue) {
		return
	}

	if !req.PlanValue.IsUnknown() && !req.PlanValue.IsNull() && !req.StateValue.IsNull() &&
		strings.EqualFold(req.PlanValue.ValueString(), req.StateValue.ValueString()) {
		return
	}

	resp.RequiresReplace = true
}
