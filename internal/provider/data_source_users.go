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
var _ datasource.DataSource = &UsersDataSource{}

func NewUsersDataSource() datasource.DataSource {
	return &UsersDataSource{}
}

// UsersDataSource lists the non-built-in user accounts of the domain.
type UsersDataSource struct {
	data *samba.ProviderData
}

// UsersDataSourceModel describes the data source data model.
type UsersDataSourceModel struct {
	ID    types.String `tfsdk:"id"`
	Names types.List   `tfsdk:"names"`
	Count types.Int64  `tfsdk:"count"`
}

func (d *UsersDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_users"
}

func (d *UsersDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Lists the names of all user accounts in the domain. " +
			"Accounts created by domain provisioning, such as `Administrator` and `krbtgt`, are left out.",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				MarkdownDescription: "Fixed identifier of the listing.",
				Computed:            true,
			},
			"names": schema.ListAttribute{
				MarkdownDescription: "User account names, in the order reported by the domain controller.",
				Computed:            true,
				ElementType:         types.StringType,
			},
			"count": schema.Int64Attribute{
				MarkdownDescription: "Number of users returned.",
				Computed:            true,
			},
		},
	}
}

func (d *UsersDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	d.data = providerDataFrom(req.ProviderData, "Data Source", &resp.Diagnostics)
}

func (d *UsersDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data UsersDataSourceModel

	ctx = initializeLogging(ctx)

	logCompletion := samba.LogDataSourceOperation(ctx, "samba_users", "read", nil)
	defer func() { logCompletion(diagnosticsError(resp.Diagnostics)) }()

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	session := liveSession(ctx, d.data, &resp.Diagnostics)
	if session == nil {
		return
	}

	names, err := d.data.Directory.ListUsers(ctx, session)
	if err != nil {
		addOperationError(&resp.Diagnostics, "Error Listing Users", "list users", err)
		return
	}

	tflog.Debug(ctx, "Listed Samba users", map[string]any{"count": len(names)})

	list, diags := helpers.StringListValue(ctx, names)
	resp.Diagnostics.Append(diags...)
	if resp.Diagnostics.HasError() {
		return
	}

	data.ID = types.StringValue("users")
	data.Names = list
	data.Count = types.Int64Value(int64(len(names)))

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}
