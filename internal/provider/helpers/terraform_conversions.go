// Package helpers provides conversions between directory values and Terraform
// types that are reused across resources, data sources, and functions.
package helpers

import (
	"context"
	"time"

	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/types"

	"github.com/isometry/terraform-provider-samba/internal/samba"
)

// Unlimited is the Terraform value for a policy period or threshold with no limit.
const Unlimited int64 = -1

// StringSetValue converts a string slice to a set. A nil slice yields an empty set.
func StringSetValue(ctx context.Context, values []string) (types.Set, diag.Diagnostics) {
	if values == nil {
		values = []string{}
	}
	return types.SetValueFrom(ctx, types.StringType, values)
}

// StringListValue converts a string slice to a list, preserving order.
func StringListValue(ctx context.Context, values []string) (types.List, diag.Diagnostics) {
	if values == nil {
		values = []string{}
	}
	return types.ListValueFrom(ctx, types.StringType, values)
}

// StringsFromSet extracts the elements of a known set. Null and unknown sets yield nil.
func StringsFromSet(ctx context.Context, set types.Set) ([]string, diag.Diagnostics) {
	if set.IsNull() || set.IsUnknown() {
		return nil, nil
	}
	var values []string
	diags := set.ElementsAs(ctx, &values, false)
	return values, diags
}

// OptionalString returns a null string for the empty string.
func OptionalString(s string) types.String {
	if s == "" {
		return types.StringNull()
	}
	return types.StringValue(s)
}

// TimeString renders t as RFC 3339 in UTC, or null when t is zero.
func TimeString(t time.Time) types.String {
	if t.IsZero() {
		return types.StringNull()
	}
	return types.StringValue(t.UTC().Format(time.RFC3339))
}

// ExpiryString renders an account expiry, "never" for accounts that do not expire.
func ExpiryString(e samba.Expiry) types.String {
	if !e.Never && e.At.IsZero() {
		return types.StringNull()
	}
	return types.StringValue(e.String())
}

// PeriodUnits renders a period as whole units, Unlimited when it never ends.
func PeriodUnits(p samba.Period, unit time.Duration) int64 {
	if p.Never {
		return Unlimited
	}
	return int64(p.Duration / unit)
}

// PeriodFromUnits is the inverse of PeriodUnits.
func PeriodFromUnits(n int64, unit time.Duration) samba.Period {
	if n == Unlimited {
		return samba.NeverPeriod()
	}
	return samba.PeriodOf(time.Duration(n) * unit)
}

// ThresholdValue renders a lockout threshold, Unlimited when accounts never lock.
func ThresholdValue(t samba.Threshold) int64 {
	if t.Unlimited {
		return Unlimited
	}
	return int64(t.Attempts)
}

// ThresholdFromValue is the inverse of ThresholdValue.
func ThresholdFromValue(n int64) samba.Threshold {
	if n == Unlimited {
		return samba.Threshold{Unlimited: true}
	}
	return samba.Threshold{Attempts: int(n)}
}
