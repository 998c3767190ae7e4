package provider

import (
	"context"

	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/terraform-provider-samba/internal/provider/helpers"
	"github.com/isometry/terraform-provider-samba/internal/provider/validators"
	"github.com/isometry/terraform-provider-samba/internal/samba"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ datasource.DataSource = &UserDataSource{}

func NewUserDataSource() datasource.DataSource {
	return &UserDataSource{}
}

// UserDataSource reads a single user account by name.
type UserDataSource struct {
	data *samba.ProviderData
}

// UserDataSourceModel describes the data source data model.
type UserDataSourceModel struct {
	ID                   types.String `tfsdk:"id"` // objectGUID
	Name                 types.String `tfsdk:"name"`
	DistinguishedName    types.String `tfsdk:"dn"`
	SID                  types.String `tfsdk:"sid"`
	GivenName            types.String `tfsdk:"given_name"`
	Surname              types.String `tfsdk:"surname"`
	Description          types.String `tfsdk:"description"`
	UserAccountControl   types.Int64  `tfsdk:"user_account_control"`
	Enabled              types.Bool   `tfsdk:"enabled"`
	LockedOut            types.Bool   `tfsdk:"locked_out"`
	PasswordNeverExpires types.Bool   `tfsdk:"password_never_expires"`
	PasswordExpired      types.Bool   `tfsdk:"password_expired"`
	PasswordLastSet      types.String `tfsdk:"password_last_set"`
	AccountExpires       types.String `tfsdk:"account_expires"`
	WhenCreated          types.String `tfsdk:"when_created"`
	Groups               types.List   `tfsdk:"groups"`
	BuiltIn              types.Bool   `tfsdk:"built_in"`
}

func (d *UserDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_user"
}

func (d *UserDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	str := func(description string) schema.StringAttribute {
		return schema.StringAttribute{MarkdownDescription: description, Computed: true}
	}
	flag := func(description string) schema.BoolAttribute {
		return schema.BoolAttribute{MarkdownDescription: description, Computed: true}
	}

	resp.Schema = schema.Schema{
		MarkdownDescription: "Reads a user account as reported by `samba-tool user show`.",

		Attributes: map[string]schema.Attribute{
			"name": schema.StringAttribute{
				MarkdownDescription: "The account name (sAMAccountName) to look up.",
				Required:            true,
				Validators: []validator.String{
					validators.IsUserName(),
				},
			},
			"id":          str("The objectGUID of the user."),
			"dn":          str("The distinguished name of the user."),
			"sid":         str("The Security Identifier (SID) of the user."),
			"given_name":  str("The user's first name."),
			"surname":     str("The user's last name."),
			"description": str("The account description."),
			"user_account_control": schema.Int64Attribute{
				MarkdownDescription: "The raw userAccountControl flags.",
				Computed:            true,
			},
			"enabled":                flag("Whether the account is enabled."),
			"locked_out":             flag("Whether the account is locked out."),
			"password_never_expires": flag("Whether the password is exempt from the maximum password age."),
			"password_expired":       flag("Whether the password has expired."),
			"password_last_set":      str("When the password was last set (RFC 3339), or null if never."),
			"account_expires":        str("When the account expires (RFC 3339), or `never`."),
			"when_created":           str("When the account was created (RFC 3339)."),
			"groups": schema.ListAttribute{
				MarkdownDescription: "Names of the groups the user is a direct member of.",
				Computed:            true,
				ElementType:         types.StringType,
			},
			"built_in": flag("Whether the account was created by domain provisioning."),
		},
	}
}

func (d *UserDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	d.data = providerDataFrom(req.ProviderData, "Data Source", &resp.Diagnostics)
}

func (d *UserDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data UserDataSourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	name := data.Name.ValueString()
	logCompletion := samba.LogDataSourceOperation(ctx, "samba_user", "read", map[string]any{"name": name})
	defer func() { logCompletion(diagnosticsError(resp.Diagnostics)) }()

	session := liveSession(ctx, d.data, &resp.Diagnostics)
	if session == nil {
		return
	}

	user, err := d.data.Directory.GetUser(ctx, session, name)
	if err != nil {
		if samba.IsNotFoundError(err) {
			resp.Diagnostics.AddError(
				"User Not Found",
				"No user account named "+name+" exists in the domain.",
			)
			return
		}
		addOperationError(&resp.Diagnostics, "Error Reading User", "read user "+name, err)
		return
	}

	tflog.Debug(ctx, "Read Samba user", map[string]any{
		"dn":     user.DN,
		"groups": len(user.Groups),
	})

	groups, diags := helpers.StringListValue(ctx, user.Groups)
	resp.Diagnostics.Append(diags...)
	if resp.Diagnostics.HasError() {
		return
	}

	data.ID = types.StringValue(user.GUID.String())
	data.Name = types.StringValue(user.Name)
	data.DistinguishedName = types.StringValue(user.DN)
	data.SID = types.StringValue(user.SID)
	data.GivenName = helpers.OptionalString(user.GivenName)
	data.Surname = helpers.OptionalString(user.Surname)
	data.Description = helpers.OptionalString(user.Description)
	data.UserAccountControl = types.Int64Value(user.UserAccountControl)
	data.Enabled = types.BoolValue(user.Enabled)
	data.LockedOut = types.BoolValue(user.LockedOut)
	data.PasswordNeverExpires = types.BoolValue(user.PasswordNeverExpires)
	data.PasswordExpired = types.BoolValue(user.PasswordExpired)
	data.PasswordLastSet = helpers.TimeString(user.PasswordLastSet)
	data.AccountExpires = helpers.ExpiryString(user.AccountExpires)
	data.WhenCreated = helpers.TimeString(user.WhenCreated)
	data.Groups = groups
	data.BuiltIn = types.BoolValue(user.BuiltIn)

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}
