package provider

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/terraform-plugin-framework-validators/int64validator"
	"github.com/hashicorp/terraform-plugin-framework-validators/providervalidator"
	"github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/ephemeral"
	"github.com/hashicorp/terraform-plugin-framework/function"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/provider"
	"github.com/hashicorp/terraform-plugin-framework/provider/schema"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/terraform-provider-samba/internal/prefs"
	"github.com/isometry/terraform-provider-samba/internal/provider/validators"
	"github.com/isometry/terraform-provider-samba/internal/samba"
)

// Ensure SambaProvider satisfies various provider interfaces.
var _ provider.Provider = &SambaProvider{}
var _ provider.ProviderWithFunctions = &SambaProvider{}
var _ provider.ProviderWithEphemeralResources = &SambaProvider{}
var _ provider.ProviderWithConfigValidators = &SambaProvider{}

// SambaProvider defines the provider implementation.
type SambaProvider struct {
	// version is set to the provider version on release, "dev" when the
	// provider is built and ran locally, and "test" when running acceptance
	// testing.
	version string

	// dial replaces the SSH dialer in unit tests.
	dial samba.Dialer
}

// SambaProviderModel describes the provider data model.
type SambaProviderModel struct {
	// Connection settings
	Host     types.String `tfsdk:"host"`
	Port     types.Int64  `tfsdk:"port"`
	Username types.String `tfsdk:"username"`

	// Authentication settings
	Password             types.String `tfsdk:"password"`
	PrivateKey           types.String `tfsdk:"private_key"`
	PrivateKeyFile       types.String `tfsdk:"private_key_file"`
	PrivateKeyPassphrase types.String `tfsdk:"private_key_passphrase"`

	// Host identity
	KnownHostsFile types.String `tfsdk:"known_hosts_file"`
	HostKeyPolicy  types.String `tfsdk:"host_key_policy"`

	// Execution settings
	ConnectTimeout types.Int64  `tfsdk:"connect_timeout"`
	CommandTimeout types.Int64  `tfsdk:"command_timeout"`
	SambaToolPath  types.String `tfsdk:"samba_tool_path"`
	UseSudo        types.Bool   `tfsdk:"use_sudo"`

	PreferencesFile types.String `tfsdk:"preferences_file"`
}

func (p *SambaProvider) Metadata(ctx context.Context, req provider.MetadataRequest, resp *provider.MetadataResponse) {
	resp.TypeName = "samba"
	resp.Version = p.version
}

func (p *SambaProvider) Schema(ctx context.Context, req provider.SchemaRequest, resp *provider.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "The Samba provider manages users, groups, organizational units and the password policy of a Samba Active Directory " +
			"domain by running `samba-tool` on a domain controller over SSH.",
		Attributes: map[string]schema.Attribute{
			// Connection settings
			"host": schema.StringAttribute{
				MarkdownDescription: "Hostname or address of the domain controller. " +
					"Can be set via the `SAMBA_HOST` environment variable.",
				Optional: true,
				Validators: []validator.String{
					stringvalidator.LengthAtLeast(1),
				},
			},
			"port": schema.Int64Attribute{
				MarkdownDescription: "SSH port of the domain controller. Defaults to `22`. " +
					"Can be set via the `SAMBA_PORT` environment variable.",
				Optional: true,
				Validators: []validator.Int64{
					int64validator.Between(1, 65535),
				},
			},
			"username": schema.StringAttribute{
				MarkdownDescription: "SSH login user. It must be allowed to run `samba-tool`, directly or through `sudo`. " +
					"Can be set via the `SAMBA_USERNAME` environment variable.",
				Optional: true,
			},

			// Authentication settings
			"password": schema.StringAttribute{
				MarkdownDescription: "SSH password. Also answers keyboard-interactive prompts. " +
					"Without a password or private key the provider authenticates with the SSH agent at `SSH_AUTH_SOCK` " +
					"and unencrypted `~/.ssh/id_ed25519`, `id_ecdsa` or `id_rsa` files. " +
					"Can be set via the `SAMBA_PASSWORD` environment variable.",
				Optional:  true,
				Sensitive: true,
			},
			"private_key": schema.StringAttribute{
				MarkdownDescription: "PEM-encoded SSH private key. Mutually exclusive with `private_key_file`. " +
					"Can be set via the `SAMBA_PRIVATE_KEY` environment variable.",
				Optional:  true,
				Sensitive: true,
			},
			"private_key_file": schema.StringAttribute{
				MarkdownDescription: "Path to an SSH private key. Mutually exclusive with `private_key`. " +
					"Can be set via the `SAMBA_PRIVATE_KEY_FILE` environment variable.",
				Optional: true,
			},
			"private_key_passphrase": schema.StringAttribute{
				MarkdownDescription: "Passphrase of an encrypted private key. " +
					"Can be set via the `SAMBA_PRIVATE_KEY_PASSPHRASE` environment variable.",
				Optional:  true,
				Sensitive: true,
			},

			// Host identity
			"known_hosts_file": schema.StringAttribute{
				MarkdownDescription: "known_hosts file used to verify the domain controller. Defaults to `~/.ssh/known_hosts`. " +
					"Can be set via the `SAMBA_KNOWN_HOSTS_FILE` environment variable.",
				Optional: true,
			},
			"host_key_policy": schema.StringAttribute{
				MarkdownDescription: "Handling of host keys missing from `known_hosts_file`: `strict` rejects them, " +
					"`accept-new` records them. A changed key is always rejected. Defaults to `strict`. " +
					"Can be set via the `SAMBA_HOST_KEY_POLICY` environment variable.",
				Optional: true,
				Validators: []validator.String{
					validators.CaseInsensitiveOneOf(string(samba.HostKeyPolicyStrict), string(samba.HostKeyPolicyAcceptNew)),
				},
			},

			// Execution settings
			"connect_timeout": schema.Int64Attribute{
				MarkdownDescription: "Connection timeout in seconds. Defaults to `30`. " +
					"Can be set via the `SAMBA_CONNECT_TIMEOUT` environment variable.",
				Optional: true,
				Validators: []validator.Int64{
					int64validator.AtLeast(1),
				},
			},
			"command_timeout": schema.Int64Attribute{
				MarkdownDescription: "Timeout in seconds for a single `samba-tool` command. Defaults to `120`. " +
					"Can be set via the `SAMBA_COMMAND_TIMEOUT` environment variable.",
				Optional: true,
				Validators: []validator.Int64{
					int64validator.AtLeast(1),
				},
			},
			"samba_tool_path": schema.StringAttribute{
				MarkdownDescription: "Path of `samba-tool` on the domain controller. Defaults to `samba-tool`. " +
					"Can be set via the `SAMBA_TOOL_PATH` environment variable.",
				Optional: true,
				Validators: []validator.String{
					stringvalidator.LengthAtLeast(1),
				},
			},
			"use_sudo": schema.BoolAttribute{
				MarkdownDescription: "Run `samba-tool` through non-interactive `sudo`. Defaults to `false`. " +
					"Can be set via the `SAMBA_USE_SUDO` environment variable.",
				Optional: true,
			},

			"preferences_file": schema.StringAttribute{
				MarkdownDescription: "YAML preferences file supplying defaults for the connection settings. " +
					"Explicit attributes and environment variables take precedence. " +
					"When the file sets `connect_automatically: false` the connection is opened on first use. " +
					"Can be set with `SAMBA_PREFERENCES_FILE`.",
				Optional: true,
			},
		},
	}
}

// ConfigValidators implements provider.ProviderWithConfigValidators.
func (p *SambaProvider) ConfigValidators(ctx context.Context) []provider.ConfigValidator {
	return []provider.ConfigValidator{
		providervalidator.Conflicting(
			path.MatchRoot("private_key"),
			path.MatchRoot("private_key_file"),
		),
	}
}

func (p *SambaProvider) Configure(ctx context.Context, req provider.ConfigureRequest, resp *provider.ConfigureResponse) {
	var data SambaProviderModel

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	ctx = p.configureLogging(ctx)

	tflog.Info(ctx, "Configuring Samba provider", map[string]any{
		"version": p.version,
	})

	config, connectNow := p.buildSessionConfig(&data, &resp.Diagnostics)
	if resp.Diagnostics.HasError() {
		return
	}

	if err := config.Validate(); err != nil {
		resp.Diagnostics.AddError(
			"Invalid Provider Configuration",
			"The Samba provider configuration is incomplete or invalid.\n\n"+
				"Configuration Error: "+err.Error(),
		)
		return
	}

	var session *samba.Session
	if connectNow {
		start := time.Now()
		var err error
		session, err = samba.ConnectWith(ctx, config, p.dial)
		if err != nil {
			tflog.Error(ctx, "Failed to connect to domain controller", map[string]any{
				"error":       err.Error(),
				"error_kind":  string(samba.KindOf(err)),
				"duration_ms": time.Since(start).Milliseconds(),
			})
			resp.Diagnostics.AddError(connectErrorSummary(err),
				"The provider could not establish an SSH session to "+config.Address()+". "+
					"Please verify your configuration settings.\n\n"+
					"Connection Error: "+err.Error(),
			)
			return
		}

		tflog.Info(ctx, "Connection established successfully", map[string]any{
			"session_id":  session.ID(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
	} else {
		tflog.Debug(ctx, "Deferring connection until first use")
	}

	providerData := samba.NewProviderData(config, session, p.dial)

	resp.DataSourceData = providerData
	resp.ResourceData = providerData

	tflog.Info(ctx, "Samba provider configured successfully")
}

func connectErrorSummary(err error) string {
	switch samba.KindOf(err) {
	case samba.ErrorKindAuth:
		return "Authentication Failed"
	case samba.ErrorKindHostKey:
		return "Host Key Verification Failed"
	default:
		return "Unable to Connect to Domain Controller"
	}
}

// configureLogging sets up logging configuration based on environment variables.
func (p *SambaProvider) configureLogging(ctx context.Context) context.Context {
	ctx = tflog.SetField(ctx, "provider", "samba")
	ctx = tflog.SetField(ctx, "provider_version", p.version)
	ctx = initializeSambaLogging(ctx)

	tflog.Debug(ctx, "Samba provider logging configured")

	return ctx
}

// buildSessionConfig resolves the session configuration. Explicit attributes win
// over environment variables, which win over the preferences file.
func (p *SambaProvider) buildSessionConfig(data *SambaProviderModel, diags *diag.Diagnostics) (*samba.SessionConfig, bool) {
	config := samba.DefaultSessionConfig()
	connectNow := true

	if file := p.getStringValue(data.PreferencesFile, "SAMBA_PREFERENCES_FILE", ""); file != "" {
		store, err := prefs.NewStore(file)
		var preferences *prefs.Preferences
		if err == nil {
			preferences, err = store.Load()
		}
		if err != nil {
			diags.AddAttributeError(
				path.Root("preferences_file"),
				"Unable to Load Preferences",
				"The preferences file "+file+" could not be loaded.\n\n"+err.Error(),
			)
			return config, false
		}
		config = preferences.SessionConfig()
		connectNow = preferences.ConnectAutomatically
	}

	config.Host = p.getStringValue(data.Host, "SAMBA_HOST", config.Host)
	config.Port = int(p.getInt64Value(data.Port, "SAMBA_PORT", int64(config.Port)))
	config.Username = p.getStringValue(data.Username, "SAMBA_USERNAME", config.Username)

	config.Password = p.getStringValue(data.Password, "SAMBA_PASSWORD", "")
	if key := p.getStringValue(data.PrivateKey, "SAMBA_PRIVATE_KEY", ""); key != "" {
		config.PrivateKey = []byte(key)
	}
	config.PrivateKeyFile = p.getStringValue(data.PrivateKeyFile, "SAMBA_PRIVATE_KEY_FILE", "")
	config.PrivateKeyPassphrase = p.getStringValue(data.PrivateKeyPassphrase, "SAMBA_PRIVATE_KEY_PASSPHRASE", "")

	config.KnownHostsFile = p.getStringValue(data.KnownHostsFile, "SAMBA_KNOWN_HOSTS_FILE", config.KnownHostsFile)
	policy := p.getStringValue(data.HostKeyPolicy, "SAMBA_HOST_KEY_POLICY", string(config.HostKeyPolicy))
	config.HostKeyPolicy = samba.HostKeyPolicy(strings.ToLower(strings.TrimSpace(policy)))

	if seconds := p.getInt64Value(data.ConnectTimeout, "SAMBA_CONNECT_TIMEOUT", 0); seconds > 0 {
		config.ConnectTimeout = time.Duration(seconds) * time.Second
	}
	if seconds := p.getInt64Value(data.CommandTimeout, "SAMBA_COMMAND_TIMEOUT", 0); seconds > 0 {
		config.CommandTimeout = time.Duration(seconds) * time.Second
	}
	config.ToolPath = p.getStringValue(data.SambaToolPath, "SAMBA_TOOL_PATH", config.ToolPath)
	config.UseSudo = p.getBoolValue(data.UseSudo, "SAMBA_USE_SUDO", config.UseSudo)

	return config, connectNow
}

// Helper functions for configuration value resolution

func (p *SambaProvider) getStringValue(configValue types.String, envVar, defaultValue string) string {
	if !configValue.IsNull() && configValue.ValueString() != "" {
		return configValue.ValueString()
	}
	if envValue := os.Getenv(envVar); envValue != "" {
		return envValue
	}
	return defaultValue
}

func (p *SambaProvider) getBoolValue(configValue types.Bool, envVar string, defaultValue bool) bool {
	if !configValue.IsNull() {
		return configValue.ValueBool()
	}
	if envValue := os.Getenv(envVar); envValue != "" {
		if parsed, err := strconv.ParseBool(envValue); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func (p *SambaProvider) getInt64Value(configValue types.Int64, envVar string, defaultValue int64) int64 {
	if !configValue.IsNull() {
		return configValue.ValueInt64()
	}
	if envValue := os.Getenv(envVar); envValue != "" {
		if parsed, err := strconv.ParseInt(envValue, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func (p *SambaProvider) Resources(ctx context.Context) []func() resource.Resource {
	return []func() resource.Resource{
		NewUserResource,
		NewGroupResource,
		NewGroupMembershipResource,
		NewPasswordPolicyResource,
		NewOUResource,
	}
}

func (p *SambaProvider) EphemeralResources(ctx context.Context) []func() ephemeral.EphemeralResource {
	return []func() ephemeral.EphemeralResource{
		// No ephemeral resources defined yet
	}
}

func (p *SambaProvider) DataSources(ctx context.Context) []func() datasource.DataSource {
	return []func() datasource.DataSource{
		NewDomainDataSource,
		NewGroupsDataSource,
		NewServerConfigDataSource,
		NewUserDataSource,
		NewUsersDataSource,
		NewWhoAmIDataSource,
	}
}

func (p *SambaProvider) Functions(ctx context.Context) []func() function.Function {
	return []func() function.Function{
		NewIsBuiltinFunction,
	}
}

func New(version string) func() provider.Provider {
	return func() provider.Provider {
		return &SambaProvider{
			version: version,
		}
	}
}
