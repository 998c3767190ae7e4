package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework/diag"

	"github.com/isometry/terraform-provider-samba/internal/samba"
)

// providerDataFrom type-asserts the value handed to Configure. It returns nil
// without diagnostics when the provider has not been configured yet.
func providerDataFrom(value any, kind string, diags *diag.Diagnostics) *samba.ProviderData {
	if value == nil {
		return nil
	}

	providerData, ok := value.(*samba.ProviderData)
	if !ok {
		diags.AddError(
			"Unexpected "+kind+" Configure Type",
			fmt.Sprintf("Expected *samba.ProviderData, got: %T. Please report this issue to the provider developers.", value),
		)
		return nil
	}

	return providerData
}

// liveSession returns the provider session, reconnecting first if it has died.
func liveSession(ctx context.Context, data *samba.ProviderData, diags *diag.Diagnostics) *samba.Session {
	if data == nil {
		diags.AddError(
			"Provider Not Configured",
			"The Samba provider has not been configured. Please report this issue to the provider developers.",
		)
		return nil
	}

	session, err := data.Session(ctx)
	if err != nil {
		diags.AddError(
			connectErrorSummary(err),
			"The provider could not obtain a live SSH session to the domain controller.\n\n"+
				"Connection Error: "+err.Error(),
		)
		return nil
	}

	return session
}

// addOperationError reports a failed directory operation, naming the steps that
// were already applied when only part of a composite operation succeeded.
func addOperationError(diags *diag.Diagnostics, summary, action string, err error) {
	var partial *samba.PartialSuccessError
	if errors.As(err, &partial) {
		diags.AddError(
			summary,
			fmt.Sprintf("Could not %s. The operation stopped part way: %s completed, %s failed. "+
				"The applied changes were kept and will be reconciled on the next apply.\n\n%s",
				action, strings.Join(partial.Completed, ", "), partial.Failed, err.Error()),
		)
		return
	}

	detail := fmt.Sprintf("Could not %s, unexpected error: %s", action, err.Error())
	switch samba.KindOf(err) {
	case samba.ErrorKindValidation:
		detail = fmt.Sprintf("Could not %s: %s", action, err.Error())
	case samba.ErrorKindSessionDead, samba.ErrorKindTimeout:
		detail += "\n\nThe command may or may not have taken effect on the domain controller. " +
			"Run a refresh before retrying."
	}

	diags.AddError(summary, detail)
}

// diagnosticsError summarises error diagnostics for exit logging.
func diagnosticsError(diags diag.Diagnostics) error {
	if !diags.HasError() {
		return nil
	}
	return errors.New(diags.Errors()[0].Summary())
}
