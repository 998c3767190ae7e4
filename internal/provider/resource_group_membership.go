package provider

import (
	"context"
	"errors"

	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/planmodifier"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/stringplanmodifier"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	customtypes "github.com/isometry/terraform-provider-samba/internal/provider/types"
	"github.com/isometry/terraform-provider-samba/internal/provider/planmodifiers"
	"github.com/isometry/terraform-provider-samba/internal/provider/validators"
	"github.com/isometry/terraform-provider-samba/internal/samba"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ resource.Resource = &GroupMembershipResource{}
var _ resource.ResourceWithImportState = &GroupMembershipResource{}

// NewGroupMembershipResource creates a new instance of the group membership resource.
func NewGroupMembershipResource() resource.Resource {
	return &GroupMembershipResource{}
}

// GroupMembershipResource defines the resource implementation.
type GroupMembershipResource struct {
	data *samba.ProviderData
}

// GroupMembershipResourceModel describes the resource data model.
type GroupMembershipResourceModel struct {
	ID      types.String                    `tfsdk:"id"`
	Group   types.String                    `tfsdk:"group"`
	Members customtypes.AccountNameSetValue `tfsdk:"members"`
}

func (r *GroupMembershipResource) Metadata(ctx context.Context, req resource.MetadataRequest, resp *resource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_group_membership"
}

func (r *GroupMembershipResource) Schema(ctx context.Context, req resource.SchemaRequest, resp *resource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Manages the complete direct membership of a Samba group. " +
			"Members not listed are removed, so use a single membership resource per group. " +
			"Names are compared case-insensitively.",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				MarkdownDescription: "The group name.",
				Computed:            true,
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.UseStateForUnknown(),
				},
			},
			"group": schema.StringAttribute{
				MarkdownDescription: "The name of the group whose membership is managed.",
				Required:            true,
				Validators: []validator.String{
					validators.IsGroupName(),
				},
				PlanModifiers: []planmodifier.String{
					planmodifiers.RequiresReplaceUnlessCaseChange(),
				},
			},
			"members": schema.SetAttribute{
				MarkdownDescription: "Account names of the members: users, groups, or computers (with a trailing `$`). " +
					"An empty set removes every member.",
				Required:    true,
				ElementType: types.StringType,
				CustomType:  customtypes.NewAccountNameSetType(),
			},
		},
	}
}

func (r *GroupMembershipResource) Configure(ctx context.Context, req resource.ConfigureRequest, resp *resource.ConfigureResponse) {
	r.data = providerDataFrom(req.ProviderData, "Resource", &resp.Diagnostics)
}

func (r *GroupMembershipResource) Create(ctx context.Context, req resource.CreateRequest, resp *resource.CreateResponse) {
	var data GroupMembershipResourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.Plan.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	data.ID = data.Group
	r.apply(ctx, "create", &data, &resp.State, &resp.Diagnostics)
}

func (r *GroupMembershipResource) Read(ctx context.Context, req resource.ReadRequest, resp *resource.ReadResponse) {
	var data GroupMembershipResourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.State.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	session := liveSession(ctx, r.data, &resp.Diagnostics)
	if session == nil {
		return
	}

	group := data.Group.ValueString()
	members, err := r.data.Directory.GroupMembers(ctx, session, group)
	if err != nil {
		if samba.IsNotFoundError(err) {
			tflog.Info(ctx, "Samba group no longer exists, removing membership from state", map[string]any{
				"group": group,
			})
			resp.State.RemoveResource(ctx)
			return
		}

		addOperationError(&resp.Diagnostics, "Error Reading Group Membership", "read the members of "+group, err)
		return
	}

	data.ID = data.Group
	var d diag.Diagnostics
	data.Members, d = customtypes.AccountNameSet(ctx, members)
	resp.Diagnostics.Append(d...)
	if resp.Diagnostics.HasError() {
		return
	}

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

func (r *GroupMembershipResource) Update(ctx context.Context, req resource.UpdateRequest, resp *resource.UpdateResponse) {
	var data GroupMembershipResourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.Plan.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	data.ID = data.Group
	r.apply(ctx, "update", &data, &resp.State, &resp.Diagnostics)
}

func (r *GroupMembershipResource) Delete(ctx context.Context, req resource.DeleteRequest, resp *resource.DeleteResponse) {
	var data GroupMembershipResourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.State.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	group := data.Group.ValueString()
	done := samba.LogResourceOperation(ctx, "samba_group_membership", "delete", map[string]any{"group": group})
	defer func() { done(diagnosticsError(resp.Diagnostics)) }()

	session := liveSession(ctx, r.data, &resp.Diagnostics)
	if session == nil {
		return
	}

	err := r.data.Directory.SetMembers(ctx, session, group, nil)
	if err != nil && !samba.IsNotFoundError(err) {
		addOperationError(&resp.Diagnostics, "Error Deleting Group Membership", "remove the members of "+group, err)
	}
}

// ImportState imports the membership of a group by group name.
func (r *GroupMembershipResource) ImportState(ctx context.Context, req resource.ImportStateRequest, resp *resource.ImportStateResponse) {
	resource.ImportStatePassthroughID(ctx, path.Root("group"), req, resp)
	resp.Diagnostics.Append(resp.State.SetAttribute(ctx, path.Root("id"), req.ID)...)
}

// apply converges the group on the planned members and records the outcome.
// When only some changes were applied the observed membership is saved.
func (r *GroupMembershipResource) apply(ctx context.Context, operation string, data *GroupMembershipResourceModel, state stateSetter, diags *diag.Diagnostics) {
	group := data.Group.ValueString()

	var desired []string
	diags.Append(data.Members.ElementsAs(ctx, &desired, false)...)
	if diags.HasError() {
		return
	}

	done := samba.LogResourceOperation(ctx, "samba_group_membership", operation, map[string]any{
		"group":   group,
		"members": len(desired),
	})
	defer func() { done(diagnosticsError(*diags)) }()

	session := liveSession(ctx, r.data, diags)
	if session == nil {
		return
	}

	if err := r.data.Directory.SetMembers(ctx, session, group, desired); err != nil {
		addOperationError(diags, "Error Setting Group Membership", "set the members of "+group, err)

		if errors.Is(err, samba.ErrPartialSuccess) {
			if members, readErr := r.data.Directory.GroupMembers(ctx, session, group); readErr == nil {
				observed, d := customtypes.AccountNameSet(ctx, members)
				diags.Append(d...)
				data.Members = observed
				diags.Append(state.Set(ctx, data)...)
			}
		}
		return
	}

	diags.Append(state.Set(ctx, data)...)
}

// stateSetter is satisfied by tfsdk.State.
type stateSetter interface {
	Set(ctx context.Context, val any) diag.Diagnostics
}
