package provider

import (
	"context"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema"
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
var _ resource.Resource = &GroupResource{}
var _ resource.ResourceWithImportState = &GroupResource{}

// NewGroupResource creates a new instance of the group resource.
func NewGroupResource() resource.Resource {
	return &GroupResource{}
}

// GroupResource defines the resource implementation.
type GroupResource struct {
	data *samba.ProviderData
}

// GroupResourceModel describes the resource data model.
type GroupResourceModel struct {
	ID          types.String `tfsdk:"id"`   // objectGUID (computed)
	Name        types.String `tfsdk:"name"` // Required
	Description types.String `tfsdk:"description"`
	OU          types.String `tfsdk:"ou"`
	// Computed attributes
	DistinguishedName types.String `tfsdk:"dn"`
	SID               types.String `tfsdk:"sid"`
}

func (r *GroupResource) Metadata(ctx context.Context, req resource.MetadataRequest, resp *resource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_group"
}

func (r *GroupResource) Schema(ctx context.Context, req resource.SchemaRequest, resp *resource.SchemaResponse) {
	resp.Schema = schema.Schema{
		// This description is used by the documentation generator and the language server.
		MarkdownDescription: "Manages a Samba Active Directory security group. " +
			"Membership is managed separately with `samba_group_membership`.",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				MarkdownDescription: "The objectGUID of the group.",
				Computed:            true,
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.UseStateForUnknown(),
				},
			},
			"name": schema.StringAttribute{
				MarkdownDescription: "The name of the group. Changing it replaces the group.",
				Required:            true,
				Validators: []validator.String{
					validators.IsGroupName(),
				},
				PlanModifiers: []planmodifier.String{
					planmodifiers.RequiresReplaceUnlessCaseChange(),
				},
			},
			"description": schema.StringAttribute{
				MarkdownDescription: "A description of the group's purpose.",
				Optional:            true,
				Validators: []validator.String{
					stringvalidator.LengthAtMost(1024),
				},
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.RequiresReplace(),
				},
			},
			"ou": schema.StringAttribute{
				MarkdownDescription: "OU path relative to the domain where the group is created, e.g. `OU=Groups`. " +
					"Defaults to the `CN=Users` container.",
				Optional: true,
				Validators: []validator.String{
					validators.IsRelativeOU(),
				},
				PlanModifiers: []planmodifier.String{
					planmodifiers.RequiresReplaceUnlessCaseChange(),
				},
			},
			"dn": schema.StringAttribute{
				MarkdownDescription: "The distinguished name of the group.",
				Computed:            true,
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.UseStateForUnknown(),
				},
			},
			"sid": schema.StringAttribute{
				MarkdownDescription: "The Security Identifier (SID) of the group.",
				Computed:            true,
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.UseStateForUnknown(),
				},
			},
		},
	}
}

func (r *GroupResource) Configure(ctx context.Context, req resource.ConfigureRequest, resp *resource.ConfigureResponse) {
	r.data = providerDataFrom(req.ProviderData, "Resource", &resp.Diagnostics)
}

func (r *GroupResource) Create(ctx context.Context, req resource.CreateRequest, resp *resource.CreateResponse) {
	var data GroupResourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.Plan.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	name := data.Name.ValueString()
	done := samba.LogResourceOperation(ctx, "samba_group", "create", map[string]any{
		"name": name,
		"ou":   data.OU.ValueString(),
	})
	defer func() { done(diagnosticsError(resp.Diagnostics)) }()

	session := liveSession(ctx, r.data, &resp.Diagnostics)
	if session == nil {
		return
	}

	_, err := r.data.Directory.AddGroup(ctx, session, &samba.CreateGroupRequest{
		Name:        name,
		Description: data.Description.ValueString(),
		OU:          data.OU.ValueString(),
	})
	if err != nil {
		addOperationError(&resp.Diagnostics, "Error Creating Group", "create group "+name, err)
		return
	}

	group, err := r.data.Directory.GetGroup(ctx, session, name)
	if err != nil {
		addOperationError(&resp.Diagnostics, "Error Creating Group",
			"read group "+name+" after it was created", err)

		// Track the group that now exists so the next apply can reconcile it.
		data.ID = data.Name
		data.DistinguishedName = types.StringNull()
		data.SID = types.StringNull()
		resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
		return
	}

	tflog.Debug(ctx, "Created Samba group", map[string]any{
		"guid": group.GUID.String(),
		"dn":   group.DN,
	})

	r.updateModelFromGroup(&data, group)

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

func (r *GroupResource) Read(ctx context.Context, req resource.ReadRequest, resp *resource.ReadResponse) {
	var data GroupResourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.State.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	session := liveSession(ctx, r.data, &resp.Diagnostics)
	if session == nil {
		return
	}

	group, err := r.data.Directory.GetGroup(ctx, session, data.Name.ValueString())
	if err != nil {
		if samba.IsNotFoundError(err) {
			tflog.Info(ctx, "Samba group no longer exists, removing from state", map[string]any{
				"name": data.Name.ValueString(),
			})
			resp.State.RemoveResource(ctx)
			return
		}

		addOperationError(&resp.Diagnostics, "Error Reading Group", "read group "+data.Name.ValueString(), err)
		return
	}

	r.updateModelFromGroup(&data, group)

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

// Update is only reached for case-only changes to the name or OU, as every
// other configurable attribute forces replacement.
func (r *GroupResource) Update(ctx context.Context, req resource.UpdateRequest, resp *resource.UpdateResponse) {
	var data GroupResourceModel

	resp.Diagnostics.Append(req.Plan.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

func (r *GroupResource) Delete(ctx context.Context, req resource.DeleteRequest, resp *resource.DeleteResponse) {
	var data GroupResourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.State.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	name := data.Name.ValueString()
	done := samba.LogResourceOperation(ctx, "samba_group", "delete", map[string]any{"name": name})
	defer func() { done(diagnosticsError(resp.Diagnostics)) }()

	session := liveSession(ctx, r.data, &resp.Diagnostics)
	if session == nil {
		return
	}

	existed, err := r.data.Directory.RemoveGroup(ctx, session, name)
	if err != nil {
		addOperationError(&resp.Diagnostics, "Error Deleting Group", "delete group "+name, err)
		return
	}

	tflog.Debug(ctx, "Deleted Samba group", map[string]any{
		"name":    name,
		"existed": existed,
	})
}

// ImportState imports a group by name.
func (r *GroupResource) ImportState(ctx context.Context, req resource.ImportStateRequest, resp *resource.ImportStateResponse) {
	resource.ImportStatePassthroughID(ctx, path.Root("name"), req, resp)
}

// updateModelFromGroup copies the directory view of the group into the model.
// The ou attribute keeps its configured value.
func (r *GroupResource) updateModelFromGroup(model *GroupResourceModel, group *samba.Group) {
	model.ID = types.StringValue(group.GUID.String())
	if !strings.EqualFold(model.Name.ValueString(), group.Name) {
		model.Name = types.StringValue(group.Name)
	}
	model.Description = helpers.OptionalString(group.Description)
	model.DistinguishedName = types.StringValue(group.DN)
	model.SID = types.StringValue(group.SID)
}
