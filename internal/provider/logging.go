package provider

import (
	"context"

	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// initializeLogging initializes the provider subsystem for consistent logging.
// This should be called at the beginning of each data source Read method
// and resource Create/Read/Update/Delete methods.
func initializeLogging(ctx context.Context) context.Context {
	// Pattern: TF_LOG_PROVIDER_SAMBA_<SUBSYSTEM>
	ctx = tflog.NewSubsystem(ctx, "provider",
		tflog.WithLevelFromEnv("TF_LOG_PROVIDER_SAMBA_PROVIDER"))
	return initializeSambaLogging(ctx)
}

// initializeSambaLogging registers the subsystem used by the session, executor and directory layers.
func initializeSambaLogging(ctx context.Context) context.Context {
	return tflog.NewSubsystem(ctx, "samba",
		tflog.WithLevelFromEnv("TF_LOG_PROVIDER_SAMBA_SAMBA"),
		tflog.WithRootFields())
}
