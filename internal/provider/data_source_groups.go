package provider

import (
	"context"

	"github.com/hashicorp/terraform-plugin-framework/attr"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/terraform-provider-samba/internal/provider/helpers"
	"github.com/isometry/terraform-provider-samba/internal/samba"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ datasource.DataSource = &GroupsDataSource{}

func NewGroupsDataSource() datasource.DataSource {
	return &GroupsDataSource{}
}

// GroupsDataSource lists the non-built-in groups of the domain with their members.
type GroupsDataSource struct {
	data *samba.ProviderData
}

// GroupsDataSourceModel describes the data source data model.
type GroupsDataSourceModel struct {
	ID     types.String `tfsdk:"id"`
	Groups types.List   `tfsdk:"groups"`
	Count  types.Int64  `tfsdk:"count"`
}

// GroupListEntryModel is one element of the groups list.
type GroupListEntryModel struct {
	Name    types.String `tfsdk:"name"`
	Members types.List   `tfsdk:"members"`
}

var groupListEntryAttrTypes = map[string]attr.Type{
	"name":    types.StringType,
	"members": types.ListType{ElemType: types.StringType},
}

func (d *GroupsDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_groups"
}

func (d *GroupsDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Lists all groups in the domain together with their direct members, ordered by name. " +
			"Built-in groups and built-in member accounts are left out.",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				MarkdownDescription: "Fixed identifier of the listing.",
				Computed:            true,
			},
			"groups": schema.ListNestedAttribute{
				MarkdownDescription: "The groups found.",
				Computed:            true,
				NestedObject: schema.NestedAttributeObject{
					Attributes: map[string]schema.Attribute{
						"name": schema.StringAttribute{
							MarkdownDescription: "The group name.",
							Computed:            true,
						},
						"members": schema.ListAttribute{
							MarkdownDescription: "Account names of the direct members.",
							Computed:            true,
							ElementType:         types.StringType,
						},
					},
				},
			},
			"count": schema.Int64Attribute{
				MarkdownDescription: "Number of groups returned.",
				Computed:            true,
			},
		},
	}
}

func (d *GroupsDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	d.data = providerDataFrom(req.ProviderData, "Data Source", &resp.Diagnostics)
}

func (d *GroupsDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data GroupsDataSourceModel

	ctx = initializeLogging(ctx)

	logCompletion := samba.LogDataSourceOperation(ctx, "samba_groups", "read", nil)
	defer func() { logCompletion(diagnosticsError(resp.Diagnostics)) }()

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	session := liveSession(ctx, d.data, &resp.Diagnostics)
	if session == nil {
		return
	}

	groups, err := d.data.Directory.ListGroups(ctx, session)
	if err != nil {
		addOperationError(&resp.Diagnostics, "Error Listing Groups", "list groups", err)
		return
	}

	tflog.Debug(ctx, "Listed Samba groups", map[string]any{"count": len(groups)})

	entries := make([]GroupListEntryModel, 0, len(groups))
	for _, group := range groups {
		members, diags := helpers.StringListValue(ctx, group.Members)
		resp.Diagnostics.Append(diags...)
		entries = append(entries, GroupListEntryModel{
			Name:    types.StringValue(group.Name),
			Members: members,
		})
	}
	if resp.Diagnostics.HasError() {
		return
	}

	list, diags := types.ListValueFrom(ctx, types.ObjectType{AttrTypes: groupListEntryAttrTypes}, entries)
	resp.Diagnostics.Append(diags...)
	if resp.Diagnostics.HasError() {
		return
	}

	data.ID = types.StringValue("groups")
	data.Groups = list
	data.Count = types.Int64Value(int64(len(entries)))

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}
