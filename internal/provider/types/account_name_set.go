// Package types holds custom Terraform attribute types for directory values.
package types

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework/attr"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/types/basetypes"
	"github.com/hashicorp/terraform-plugin-go/tftypes"
)

// Ensure the implementation satisfies the expected interfaces.
var (
	_ basetypes.SetTypable                    = AccountNameSetType{}
	_ basetypes.SetValuable                   = AccountNameSetValue{}
	_ basetypes.SetValuableWithSemanticEquals = AccountNameSetValue{}
)

// AccountNameSetType is a set of account names compared case-insensitively,
// matching how the directory resolves sAMAccountName.
type AccountNameSetType struct {
	basetypes.SetType
}

// NewAccountNameSetType returns the type with its string element type set.
func NewAccountNameSetType() AccountNameSetType {
	return AccountNameSetType{
		SetType: basetypes.SetType{ElemType: basetypes.StringType{}},
	}
}

func (t AccountNameSetType) String() string {
	return "AccountNameSetType"
}

func (t AccountNameSetType) ValueType(ctx context.Context) attr.Value {
	return AccountNameSetValue{}
}

func (t AccountNameSetType) Equal(o attr.Type) bool {
	other, ok := o.(AccountNameSetType)
	if !ok {
		return false
	}
	return t.SetType.Equal(other.SetType)
}

func (t AccountNameSetType) ValueFromSet(ctx context.Context, in basetypes.SetValue) (basetypes.SetValuable, diag.Diagnostics) {
	return AccountNameSetValue{SetValue: in}, nil
}

func (t AccountNameSetType) ValueFromTerraform(ctx context.Context, in tftypes.Value) (attr.Value, error) {
	attrValue, err := t.SetType.ValueFromTerraform(ctx, in)
	if err != nil {
		return nil, err
	}

	setValue, ok := attrValue.(basetypes.SetValue)
	if !ok {
		return nil, fmt.Errorf("expected basetypes.SetValue, got: %T", attrValue)
	}

	return AccountNameSetValue{SetValue: setValue}, nil
}

// AccountNameSetValue is a set of account names with case-insensitive semantic equality.
type AccountNameSetValue struct {
	basetypes.SetValue
}

func (v AccountNameSetValue) Equal(o attr.Value) bool {
	other, ok := o.(AccountNameSetValue)
	if !ok {
		return false
	}
	return v.SetValue.Equal(other.SetValue)
}

func (v AccountNameSetValue) Type(ctx context.Context) attr.Type {
	return NewAccountNameSetType()
}

// SetSemanticEquals treats {"Alice"} and {"alice"} as the same membership.
func (v AccountNameSetValue) SetSemanticEquals(ctx context.Context, newValuable basetypes.SetValuable) (bool, diag.Diagnostics) {
	var diags diag.Diagnostics

	newValue, ok := newValuable.(AccountNameSetValue)
	if !ok {
		diags.AddError(
			"Semantic Equality Check Error",
			"An unexpected value type was received while attempting to perform semantic equality checks. "+
				"This is always an error in the provider. Please report the following to the provider developer:\n\n"+
				fmt.Sprintf("Expected AccountNameSetValue, but got: %T", newValuable),
		)
		return false, diags
	}

	if v.IsNull() || v.IsUnknown() || newValue.IsNull() || newValue.IsUnknown() {
		return v.Equal(newValue), diags
	}

	var oldNames, newNames []string
	diags.Append(v.ElementsAs(ctx, &oldNames, false)...)
	diags.Append(newValue.ElementsAs(ctx, &newNames, false)...)
	if diags.HasError() {
		return false, diags
	}

	return foldedSet(oldNames).equal(foldedSet(newNames)), diags
}

type nameSet map[string]struct{}

func foldedSet(names []string) nameSet {
	set := make(nameSet, len(names))
	for _, n := range names {
		set[strings.ToLower(strings.TrimSpace(n))] = struct{}{}
	}
	return set
}

func (s nameSet) equal(other nameSet) bool {
	if len(s) != len(other) {
		return false
	}
	for n := range s {
		if _, ok := other[n]; !ok {
			return false
		}
	}
	return true
}

// AccountNameSet builds a known value from names.
func AccountNameSet(ctx context.Context, names []string) (AccountNameSetValue, diag.Diagnostics) {
	if names == nil {
		names = []string{}
	}
	setValue, diags := basetypes.NewSetValueFrom(ctx, basetypes.StringType{}, names)
	return AccountNameSetValue{SetValue: setValue}, diags
}

// AccountNameSetNull returns a null value.
func AccountNameSetNull() AccountNameSetValue {
	return AccountNameSetValue{SetValue: basetypes.NewSetNull(basetypes.StringType{})}
}
