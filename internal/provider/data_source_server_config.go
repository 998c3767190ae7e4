package provider

import (
	"context"

	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/terraform-provider-samba/internal/provider/helpers"
	"github.com/isometry/terraform-provider-samba/internal/samba"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ datasource.DataSource = &ServerConfigDataSource{}

func NewServerConfigDataSource() datasource.DataSource {
	return &ServerConfigDataSource{}
}

// ServerConfigDataSource reports the effective smb.conf of the domain controller.
type ServerConfigDataSource struct {
	data *samba.ProviderData
}

// ServerConfigDataSourceModel describes the data source data model.
type ServerConfigDataSourceModel struct {
	ID          types.String `tfsdk:"id"`
	ServerRole  types.String `tfsdk:"server_role"`
	Realm       types.String `tfsdk:"realm"`
	Workgroup   types.String `tfsdk:"workgroup"`
	NetbiosName types.String `tfsdk:"netbios_name"`
	Global      types.Map    `tfsdk:"global"`
	Shares      types.List   `tfsdk:"shares"`
}

func (d *ServerConfigDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_server_config"
}

func (d *ServerConfigDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Reports the effective Samba configuration of the domain controller, " +
			"as dumped by `samba-tool testparm`.",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				MarkdownDescription: "The NetBIOS name of the server.",
				Computed:            true,
			},
			"server_role": schema.StringAttribute{
				MarkdownDescription: "The `server role` parameter, e.g. `active directory domain controller`.",
				Computed:            true,
			},
			"realm": schema.StringAttribute{
				MarkdownDescription: "The Kerberos realm.",
				Computed:            true,
			},
			"workgroup": schema.StringAttribute{
				MarkdownDescription: "The NetBIOS domain name.",
				Computed:            true,
			},
			"netbios_name": schema.StringAttribute{
				MarkdownDescription: "The NetBIOS name of the server.",
				Computed:            true,
			},
			"global": schema.MapAttribute{
				MarkdownDescription: "Every parameter of the `[global]` section, keyed by lower-case parameter name. " +
					"Parameters left at their default values are not listed.",
				Computed:    true,
				ElementType: types.StringType,
			},
			"shares": schema.ListAttribute{
				MarkdownDescription: "Names of the configured shares, such as `sysvol` and `netlogon`.",
				Computed:            true,
				ElementType:         types.StringType,
			},
		},
	}
}

func (d *ServerConfigDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	d.data = providerDataFrom(req.ProviderData, "Data Source", &resp.Diagnostics)
}

func (d *ServerConfigDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data ServerConfigDataSourceModel

	ctx = initializeLogging(ctx)

	logCompletion := samba.LogDataSourceOperation(ctx, "samba_server_config", "read", nil)
	defer func() { logCompletion(diagnosticsError(resp.Diagnostics)) }()

	session := liveSession(ctx, d.data, &resp.Diagnostics)
	if session == nil {
		return
	}

	cfg, err := d.data.Directory.ServerConfig(ctx, session)
	if err != nil {
		addOperationError(&resp.Diagnostics, "Error Reading Server Configuration", "read the server configuration", err)
		return
	}

	tflog.Debug(ctx, "Read Samba server configuration", map[string]any{
		"server_role": cfg.ServerRole,
		"parameters":  len(cfg.Global),
		"shares":      len(cfg.Shares),
	})

	global, diags := types.MapValueFrom(ctx, types.StringType, cfg.Global)
	resp.Diagnostics.Append(diags...)
	shares, diags := helpers.StringListValue(ctx, cfg.Shares)
	resp.Diagnostics.Append(diags...)
	if resp.Diagnostics.HasError() {
		return
	}

	data.ID = types.StringValue(cfg.NetbiosName)
	data.ServerRole = helpers.OptionalString(cfg.ServerRole)
	data.Realm = helpers.OptionalString(cfg.Realm)
	data.Workgroup = helpers.OptionalString(cfg.Workgroup)
	data.NetbiosName = helpers.OptionalString(cfg.NetbiosName)
	data.Global = global
	data.Shares = shares

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}
