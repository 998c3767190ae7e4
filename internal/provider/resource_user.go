package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/booldefault"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/int64planmodifier"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/planmodifier"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/stringplanmodifier"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/terraform-provider-samba/internal/provider/helpers"
	"github.com/isometry/terraform-provider-samba/internal/provider/planmodifiers"
	"github.com/isometry/terraform-provider-samba/internal/provider/validators"
	"github.com/isometry/terraform-provider-samba/internal/samba"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ resource.Resource = &UserResource{}
var _ resource.ResourceWithImportState = &UserResource{}

// NewUserResource creates a new instance of the user resource.
func NewUserResource() resource.Resource {
	return &UserResource{}
}

// UserResource defines the resource implementation.
type UserResource struct {
	data *samba.ProviderData
}

// UserResourceModel describes the resource data model.
type UserResourceModel struct {
	ID                            types.String `tfsdk:"id"`   // objectGUID (computed)
	Name                          types.String `tfsdk:"name"` // sAMAccountName
	Password                      types.String `tfsdk:"password"`
	GivenName                     types.String `tfsdk:"given_name"`
	Surname                       types.String `tfsdk:"surname"`
	Description                   types.String `tfsdk:"description"`
	OU                            types.String `tfsdk:"ou"`
	Enabled                       types.Bool   `tfsdk:"enabled"`
	MustChangePasswordAtNextLogin types.Bool   `tfsdk:"must_change_password_at_next_login"`
	// Computed attributes
	DistinguishedName    types.String `tfsdk:"dn"`
	SID                  types.String `tfsdk:"sid"`
	UserAccountControl   types.Int64  `tfsdk:"user_account_control"`
	PasswordNeverExpires types.Bool   `tfsdk:"password_never_expires"`
}

func (r *UserResource) Metadata(ctx context.Context, req resource.MetadataRequest, resp *resource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_user"
}

func (r *UserResource) Schema(ctx context.Context, req resource.SchemaRequest, resp *resource.SchemaResponse) {
	replaceString := []planmodifier.String{stringplanmodifier.RequiresReplace()}

	resp.Schema = schema.Schema{
		MarkdownDescription: "Manages a Samba Active Directory user account. " +
			"The account is created with `samba-tool user add`; name, OU and profile attributes cannot be changed in place.",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				MarkdownDescription: "The objectGUID of the user.",
				Computed:            true,
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.UseStateForUnknown(),
				},
			},
			"name": schema.StringAttribute{
				MarkdownDescription: "The logon name (sAMAccountName). At most 20 characters.",
				Required:            true,
				Validators: []validator.String{
					validators.IsUserName(),
				},
				PlanModifiers: []planmodifier.String{
					planmodifiers.RequiresReplaceUnlessCaseChange(),
				},
			},
			"password": schema.StringAttribute{
				MarkdownDescription: "The account password. Changing it resets the password on the domain controller. " +
					"The value is never read back, so changes made outside Terraform are not detected.",
				Required:  true,
				Sensitive: true,
				Validators: []validator.String{
					stringvalidator.LengthAtLeast(1),
				},
			},
			"given_name": schema.StringAttribute{
				MarkdownDescription: "The given (first) name.",
				Optional:            true,
				PlanModifiers:       replaceString,
			},
			"surname": schema.StringAttribute{
				MarkdownDescription: "The surname.",
				Optional:            true,
				PlanModifiers:       replaceString,
			},
			"description": schema.StringAttribute{
				MarkdownDescription: "A description of the account.",
				Optional:            true,
				Validators: []validator.String{
					stringvalidator.LengthAtMost(1024),
				},
				PlanModifiers: replaceString,
			},
			"ou": schema.StringAttribute{
				MarkdownDescription: "OU path relative to the domain where the account is created, e.g. `OU=Staff`. " +
					"Defaults to the `CN=Users` container.",
				Optional: true,
				Validators: []validator.String{
					validators.IsRelativeOU(),
				},
				PlanModifiers: []planmodifier.String{
					planmodifiers.RequiresReplaceUnlessCaseChange(),
				},
			},
			"enabled": schema.BoolAttribute{
				MarkdownDescription: "Whether the account is enabled. Defaults to `true`.",
				Optional:            true,
				Computed:            true,
				Default:             booldefault.StaticBool(true),
			},
			"must_change_password_at_next_login": schema.BoolAttribute{
				MarkdownDescription: "Require a password change at next logon. Applied when the account is created " +
					"and whenever `password` changes. Defaults to `false`.",
				Optional: true,
				Computed: true,
				Default:  booldefault.StaticBool(false),
			},
			"dn": schema.StringAttribute{
				MarkdownDescription: "The distinguished name of the account.",
				Computed:            true,
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.UseStateForUnknown(),
				},
			},
			"sid": schema.StringAttribute{
				MarkdownDescription: "The Security Identifier (SID) of the account.",
				Computed:            true,
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.UseStateForUnknown(),
				},
			},
			"user_account_control": schema.Int64Attribute{
				MarkdownDescription: "The raw userAccountControl flags.",
				Computed:            true,
				PlanModifiers: []planmodifier.Int64{
					int64planmodifier.UseStateForUnknown(),
				},
			},
			"password_never_expires": schema.BoolAttribute{
				MarkdownDescription: "Whether the password is exempt from the maximum password age.",
				Computed:            true,
			},
		},
	}
}

func (r *UserResource) Configure(ctx context.Context, req resource.ConfigureRequest, resp *resource.ConfigureResponse) {
	r.data = providerDataFrom(req.ProviderData, "Resource", &resp.Diagnostics)
}

func (r *UserResource) Create(ctx context.Context, req resource.CreateRequest, resp *resource.CreateResponse) {
	var data UserResourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.Plan.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	done := samba.LogResourceOperation(ctx, "samba_user", "create", map[string]any{
		"name": data.Name.ValueString(),
		"ou":   data.OU.ValueString(),
	})
	defer func() { done(diagnosticsError(resp.Diagnostics)) }()

	session := liveSession(ctx, r.data, &resp.Diagnostics)
	if session == nil {
		return
	}

	enabled := data.Enabled.ValueBool()
	createReq := &samba.CreateUserRequest{
		Name:                  data.Name.ValueString(),
		Password:              data.Password.ValueString(),
		GivenName:             data.GivenName.ValueString(),
		Surname:               data.Surname.ValueString(),
		Description:           data.Description.ValueString(),
		OU:                    data.OU.ValueString(),
		MustChangeAtNextLogin: data.MustChangePasswordAtNextLogin.ValueBool(),
		Enabled:               &enabled,
	}

	user, err := r.data.Directory.AddUser(ctx, session, createReq)
	if err != nil {
		addOperationError(&resp.Diagnostics, "Error Creating User", "create user "+createReq.Name, err)

		if errors.Is(err, samba.ErrPartialSuccess) {
			// The account exists; keep what can be read so it is tracked and tainted.
			r.savePartialState(ctx, session, &data, resp)
		}
		return
	}

	tflog.Debug(ctx, "Created Samba user", map[string]any{
		"guid": user.GUID.String(),
		"dn":   user.DN,
	})

	r.updateModelFromUser(&data, user)

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

func (r *UserResource) savePartialState(ctx context.Context, session *samba.Session, data *UserResourceModel, resp *resource.CreateResponse) {
	if user, err := r.data.Directory.GetUser(ctx, session, data.Name.ValueString()); err == nil {
		r.updateModelFromUser(data, user)
	} else {
		data.ID = data.Name
		data.DistinguishedName = types.StringNull()
		data.SID = types.StringNull()
		data.UserAccountControl = types.Int64Null()
		data.PasswordNeverExpires = types.BoolNull()
	}

	resp.Diagnostics.Append(resp.State.Set(ctx, data)...)
}

func (r *UserResource) Read(ctx context.Context, req resource.ReadRequest, resp *resource.ReadResponse) {
	var data UserResourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.State.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	session := liveSession(ctx, r.data, &resp.Diagnostics)
	if session == nil {
		return
	}

	user, err := r.data.Directory.GetUser(ctx, session, data.Name.ValueString())
	if err != nil {
		if samba.IsNotFoundError(err) {
			tflog.Info(ctx, "Samba user no longer exists, removing from state", map[string]any{
				"name": data.Name.ValueString(),
			})
			resp.State.RemoveResource(ctx)
			return
		}

		addOperationError(&resp.Diagnostics, "Error Reading User", "read user "+data.Name.ValueString(), err)
		return
	}

	r.updateModelFromUser(&data, user)

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

func (r *UserResource) Update(ctx context.Context, req resource.UpdateRequest, resp *resource.UpdateResponse) {
	var data, state UserResourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.Plan.Get(ctx, &data)...)
	resp.Diagnostics.Append(req.State.Get(ctx, &state)...)
	if resp.Diagnostics.HasError() {
		return
	}

	name := data.Name.ValueString()
	done := samba.LogResourceOperation(ctx, "samba_user", "update", map[string]any{"name": name})
	defer func() { done(diagnosticsError(resp.Diagnostics)) }()

	session := liveSession(ctx, r.data, &resp.Diagnostics)
	if session == nil {
		return
	}

	if !data.Password.Equal(state.Password) {
		tflog.Debug(ctx, "Resetting Samba user password", map[string]any{"name": name})
		err := r.data.Directory.ResetPassword(ctx, session, name, data.Password.ValueString(), data.MustChangePasswordAtNextLogin.ValueBool())
		if err != nil {
			addOperationError(&resp.Diagnostics, "Error Updating User", "reset the password of "+name, err)
			return
		}
		// Later failures must not leave the old password in state.
		state.Password = data.Password
		state.MustChangePasswordAtNextLogin = data.MustChangePasswordAtNextLogin
		resp.Diagnostics.Append(resp.State.Set(ctx, &state)...)
	}

	if !data.Enabled.Equal(state.Enabled) {
		var err error
		if data.Enabled.ValueBool() {
			err = r.data.Directory.EnableUser(ctx, session, name)
		} else {
			err = r.data.Directory.DisableUser(ctx, session, name)
		}
		if err != nil {
			addOperationError(&resp.Diagnostics, "Error Updating User", "change the enabled state of "+name, err)
			return
		}
	}

	user, err := r.data.Directory.GetUser(ctx, session, name)
	if err != nil {
		addOperationError(&resp.Diagnostics, "Error Reading User", "read user "+name+" after update", err)
		return
	}

	r.updateModelFromUser(&data, user)

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

func (r *UserResource) Delete(ctx context.Context, req resource.DeleteRequest, resp *resource.DeleteResponse) {
	var data UserResourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.State.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	name := data.Name.ValueString()
	done := samba.LogResourceOperation(ctx, "samba_user", "delete", map[string]any{"name": name})
	defer func() { done(diagnosticsError(resp.Diagnostics)) }()

	session := liveSession(ctx, r.data, &resp.Diagnostics)
	if session == nil {
		return
	}

	existed, err := r.data.Directory.RemoveUser(ctx, session, name)
	if err != nil {
		addOperationError(&resp.Diagnostics, "Error Deleting User", "delete user "+name, err)
		return
	}

	tflog.Debug(ctx, "Deleted Samba user", map[string]any{
		"name":    name,
		"existed": existed,
	})
}

// ImportState imports a user by its logon name. The password is not
// readable and is set by the next apply.
func (r *UserResource) ImportState(ctx context.Context, req resource.ImportStateRequest, resp *resource.ImportStateResponse) {
	resource.ImportStatePassthroughID(ctx, path.Root("name"), req, resp)
	resp.Diagnostics.Append(resp.State.SetAttribute(ctx, path.Root("enabled"), true)...)
	resp.Diagnostics.Append(resp.State.SetAttribute(ctx, path.Root("must_change_password_at_next_login"), false)...)
}

// updateModelFromUser copies the directory view of the account into the model.
// Write-only attributes (password, ou, must-change flag) keep their planned values.
func (r *UserResource) updateModelFromUser(model *UserResourceModel, user *samba.User) {
	model.ID = types.StringValue(user.GUID.String())
	if !strings.EqualFold(model.Name.ValueString(), user.Name) {
		model.Name = types.StringValue(user.Name)
	}
	model.GivenName = helpers.OptionalString(user.GivenName)
	model.Surname = helpers.OptionalString(user.Surname)
	model.Description = helpers.OptionalString(user.Description)
	model.Enabled = types.BoolValue(user.Enabled)
	model.DistinguishedName = types.StringValue(user.DN)
	model.SID = types.StringValue(user.SID)
	model.UserAccountControl = types.Int64Value(user.UserAccountControl)
	model.PasswordNeverExpires = types.BoolValue(user.PasswordNeverExpires)
}
