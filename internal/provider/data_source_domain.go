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
var _ datasource.DataSource = &DomainDataSource{}

func NewDomainDataSource() datasource.DataSource {
	return &DomainDataSource{}
}

// DomainDataSource describes the domain served by the connected controller.
type DomainDataSource struct {
	data *samba.ProviderData
}

// DomainDataSourceModel describes the data source data model.
type DomainDataSourceModel struct {
	ID                  types.String `tfsdk:"id"` // Domain DNS name
	Forest              types.String `tfsdk:"forest"`
	Domain              types.String `tfsdk:"domain"`
	NetbiosDomain       types.String `tfsdk:"netbios_domain"`
	DCName              types.String `tfsdk:"dc_name"`
	DCNetbiosName       types.String `tfsdk:"dc_netbios_name"`
	ServerSite          types.String `tfsdk:"server_site"`
	ClientSite          types.String `tfsdk:"client_site"`
	OrganizationalUnits types.List   `tfsdk:"organizational_units"`
	Computers           types.List   `tfsdk:"computers"`
}

func (d *DomainDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_domain"
}

func (d *DomainDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	computed := func(description string) schema.StringAttribute {
		return schema.StringAttribute{MarkdownDescription: description, Computed: true}
	}

	resp.Schema = schema.Schema{
		MarkdownDescription: "Reports the domain served by the connected domain controller, " +
			"as returned by `samba-tool domain info`, with its organizational units and computer accounts.",

		Attributes: map[string]schema.Attribute{
			"id":              computed("The DNS name of the domain."),
			"forest":          computed("The forest DNS name."),
			"domain":          computed("The domain DNS name."),
			"netbios_domain":  computed("The NetBIOS domain name."),
			"dc_name":         computed("The DNS name of the domain controller."),
			"dc_netbios_name": computed("The NetBIOS name of the domain controller."),
			"server_site":     computed("The site of the domain controller."),
			"client_site":     computed("The site of the client as seen by the domain controller."),
			"organizational_units": schema.ListAttribute{
				MarkdownDescription: "Distinguished names of all organizational units.",
				Computed:            true,
				ElementType:         types.StringType,
			},
			"computers": schema.ListAttribute{
				MarkdownDescription: "Computer account names, with their trailing `$`.",
				Computed:            true,
				ElementType:         types.StringType,
			},
		},
	}
}

func (d *DomainDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	d.data = providerDataFrom(req.ProviderData, "Data Source", &resp.Diagnostics)
}

func (d *DomainDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data DomainDataSourceModel

	ctx = initializeLogging(ctx)

	logCompletion := samba.LogDataSourceOperation(ctx, "samba_domain", "read", nil)
	defer func() { logCompletion(diagnosticsError(resp.Diagnostics)) }()

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	session := liveSession(ctx, d.data, &resp.Diagnostics)
	if session == nil {
		return
	}

	info, err := d.data.Directory.DomainInfo(ctx, session)
	if err != nil {
		addOperationError(&resp.Diagnostics, "Error Reading Domain Information", "query the domain controller", err)
		return
	}

	ous, err := d.data.Directory.ListOUs(ctx, session)
	if err != nil {
		addOperationError(&resp.Diagnostics, "Error Listing Organizational Units", "list organizational units", err)
		return
	}

	computers, err := d.data.Directory.ListComputers(ctx, session)
	if err != nil {
		addOperationError(&resp.Diagnostics, "Error Listing Computers", "list computer accounts", err)
		return
	}

	tflog.Debug(ctx, "Read Samba domain information", map[string]any{
		"domain":    info.Domain,
		"dc_name":   info.DCName,
		"ous":       len(ous),
		"computers": len(computers),
	})

	data.ID = types.StringValue(info.Domain)
	data.Forest = types.StringValue(info.Forest)
	data.Domain = types.StringValue(info.Domain)
	data.NetbiosDomain = types.StringValue(info.NetbiosDomain)
	data.DCName = types.StringValue(info.DCName)
	data.DCNetbiosName = types.StringValue(info.DCNetbiosName)
	data.ServerSite = helpers.OptionalString(info.ServerSite)
	data.ClientSite = helpers.OptionalString(info.ClientSite)

	ouList, diags := helpers.StringListValue(ctx, ous)
	resp.Diagnostics.Append(diags...)
	computerList, diags := helpers.StringListValue(ctx, computers)
	resp.Diagnostics.Append(diags...)
	if resp.Diagnostics.HasError() {
		return
	}
	data.OrganizationalUnits = ouList
	data.Computers = computerList

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}
