package provider_test

import (
	"context"
	"testing"

	"github.com/hashicorp/terraform-plugin-framework/attr"
	"github.com/hashicorp/terraform-plugin-framework/function"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isometry/terraform-provider-samba/internal/provider"
)

func TestIsBuiltinFunction_Metadata(t *testing.T) {
	ctx := context.Background()
	f := provider.NewIsBuiltinFunction()

	var req function.MetadataRequest
	var resp function.MetadataResponse

	f.Metadata(ctx, req, &resp)

	assert.Equal(t, "is_builtin", resp.Name)
}

func TestIsBuiltinFunction_Definition(t *testing.T) {
	ctx := context.Background()
	f := provider.NewIsBuiltinFunction()

	var req function.DefinitionRequest
	var resp function.DefinitionResponse

	f.Definition(ctx, req, &resp)

	assert.NotEmpty(t, resp.Definition.Summary)
	require.Len(t, resp.Definition.Parameters, 1)
	assert.Equal(t, "principal", resp.Definition.Parameters[0].GetName())

	_, ok := resp.Definition.Parameters[0].(function.StringParameter)
	assert.True(t, ok)
	_, ok = resp.Definition.Return.(function.BoolReturn)
	assert.True(t, ok)
}

func runIsBuiltin(t *testing.T, principal string) (bool, *function.FuncError) {
	t.Helper()

	ctx := context.Background()
	f := provider.NewIsBuiltinFunction()

	req := function.RunRequest{
		Arguments: function.NewArgumentsData([]attr.Value{types.StringValue(principal)}),
	}
	resp := function.RunResponse{
		Result: function.NewResultData(types.BoolUnknown()),
	}

	f.Run(ctx, req, &resp)
	if resp.Error != nil {
		return false, resp.Error
	}

	result, ok := resp.Result.Value().(types.Bool)
	require.True(t, ok)
	return result.ValueBool(), nil
}

func TestIsBuiltinFunction_Run(t *testing.T) {
	tests := []struct {
		name      string
		principal string
		want      bool
	}{
		{"administrator", "Administrator", true},
		{"krbtgt lower case", "krbtgt", true},
		{"domain admins mixed case", "domain ADMINS", true},
		{"builtin alias sid", "S-1-5-32-544", true},
		{"domain admins sid", "S-1-5-21-1004336348-1177238915-682003330-512", true},
		{"lower case sid prefix", "s-1-5-21-1004336348-1177238915-682003330-500", true},
		{"regular user", "alice", false},
		{"regular group", "Engineering", false},
		{"regular user sid", "S-1-5-21-1004336348-1177238915-682003330-1105", false},
		{"world sid", "S-1-1-0", false},
		{"padded name", "  Guest ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := runIsBuiltin(t, tt.principal)
			require.Nil(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsBuiltinFunction_EmptyPrincipal(t *testing.T) {
	_, err := runIsBuiltin(t, "   ")
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "must not be empty")
}
