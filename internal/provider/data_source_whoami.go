package provider

import (
	"context"
	"time"

	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/terraform-provider-samba/internal/samba"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ datasource.DataSource = &WhoAmIDataSource{}

func NewWhoAmIDataSource() datasource.DataSource {
	return &WhoAmIDataSource{}
}

// WhoAmIDataSource defines the data source implementation.
type WhoAmIDataSource struct {
	data *samba.ProviderData
}

// WhoAmIDataSourceModel describes the data source data model.
type WhoAmIDataSourceModel struct {
	ID            types.String `tfsdk:"id"` // Session ID
	Host          types.String `tfsdk:"host"`
	Username      types.String `tfsdk:"username"`
	ConnectedAt   types.String `tfsdk:"connected_at"`
	SambaToolPath types.String `tfsdk:"samba_tool_path"`
	UseSudo       types.Bool   `tfsdk:"use_sudo"`
}

func (d *WhoAmIDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_whoami"
}

func (d *WhoAmIDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Reports the SSH session the provider administers the domain through. " +
			"Reading it connects if the provider has not connected yet, which makes it a cheap connectivity check.",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				MarkdownDescription: "Identifier of the current session. A new value means the provider reconnected.",
				Computed:            true,
			},
			"host": schema.StringAttribute{
				MarkdownDescription: "The domain controller the session is connected to.",
				Computed:            true,
			},
			"username": schema.StringAttribute{
				MarkdownDescription: "The SSH user the session authenticated as.",
				Computed:            true,
			},
			"connected_at": schema.StringAttribute{
				MarkdownDescription: "When the session was established, in RFC 3339 format.",
				Computed:            true,
			},
			"samba_tool_path": schema.StringAttribute{
				MarkdownDescription: "The `samba-tool` executable commands are run with.",
				Computed:            true,
			},
			"use_sudo": schema.BoolAttribute{
				MarkdownDescription: "Whether commands are run through `sudo`.",
				Computed:            true,
			},
		},
	}
}

func (d *WhoAmIDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	d.data = providerDataFrom(req.ProviderData, "Data Source", &resp.Diagnostics)
}

func (d *WhoAmIDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	ctx = initializeLogging(ctx)

	session := liveSession(ctx, d.data, &resp.Diagnostics)
	if session == nil {
		return
	}

	exec := d.data.Directory.Executor().Config()
	data := WhoAmIDataSourceModel{
		ID:            types.StringValue(session.ID()),
		Host:          types.StringValue(session.Host()),
		Username:      types.StringValue(session.Username()),
		ConnectedAt:   types.StringValue(session.CreatedAt().UTC().Format(time.RFC3339)),
		SambaToolPath: types.StringValue(exec.ToolPath),
		UseSudo:       types.BoolValue(exec.UseSudo),
	}

	tflog.Debug(ctx, "Read Samba session identity", map[string]any{
		"session_id": session.ID(),
		"host":       session.Host(),
	})

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}
