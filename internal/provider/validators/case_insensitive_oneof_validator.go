package validators

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
)

var _ validator.String = oneOfFoldValidator{}

// oneOfFoldValidator accepts any spelling of a fixed keyword set that matches
// after case folding and trimming.
type oneOfFoldValidator struct {
	keywords []string
}

// loose drops case, whitespace and separators so near misses such as
// "accept_new" can be matched to a suggestion.
func loose(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '-', '_', ' ', '\t':
			return -1
		}
		return r
	}, strings.ToLower(s))
}

func (v oneOfFoldValidator) Description(_ context.Context) string {
	return fmt.Sprintf("value must be one of: %s (case-insensitive)", strings.Join(v.keywords, ", "))
}

func (v oneOfFoldValidator) MarkdownDescription(ctx context.Context) string {
	return v.Description(ctx)
}

func (v oneOfFoldValidator) ValidateString(_ context.Context, req validator.StringRequest, resp *validator.StringResponse) {
	if req.ConfigValue.IsNull() || req.ConfigValue.IsUnknown() {
		return
	}

	got := req.ConfigValue.ValueString()
	trimmed := strings.TrimSpace(got)
	var suggestion string
	for _, keyword := range v.keywords {
		if strings.EqualFold(trimmed, keyword) {
			return
		}
		if trimmed != "" && loose(trimmed) == loose(keyword) {
			suggestion = keyword
		}
	}

	detail := fmt.Sprintf("The value %q is not valid. Must be one of: %s (case-insensitive)",
		got, strings.Join(v.keywords, ", "))
	if suggestion != "" {
		detail += fmt.Sprintf(". Did you mean %q?", suggestion)
	}
	resp.Diagnostics.AddAttributeError(req.Path, "Invalid Value", detail)
}

// CaseInsensitiveOneOf accepts exactly the given keywords, in any letter case
// and with surrounding whitespace. Null and unknown values are not checked.
func CaseInsensitiveOneOf(keywords ...string) validator.String {
	return oneOfFoldValidator{keywords: keywords}
}
