package provider

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/planmodifier"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/stringplanmodifier"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/terraform-provider-samba/internal/provider/planmodifiers"
	"github.com/isometry/terraform-provider-samba/internal/provider/validators"
	"github.com/isometry/terraform-provider-samba/internal/samba"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ resource.Resource = &OUResource{}
var _ resource.ResourceWithImportState = &OUResource{}

var ouNamePattern = regexp.MustCompile(`^[^"\\#+,;<=>\r\n/]+$`)

func NewOUResource() resource.Resource {
	return &OUResource{}
}

// OUResource defines the resource implementation.
type OUResource struct {
	data *samba.ProviderData
}

// OUResourceModel describes the resource data model.
type OUResourceModel struct {
	ID          types.String `tfsdk:"id"`   // Relative DN as listed by the server
	Name        types.String `tfsdk:"name"` // Required - OU name
	Path        types.String `tfsdk:"path"` // Optional - parent OU path relative to the domain
	Description types.String `tfsdk:"description"`
	// Computed attributes
	DN types.String `tfsdk:"dn"`
}

func (r *OUResource) Metadata(ctx context.Context, req resource.MetadataRequest, resp *resource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_ou"
}

func (r *OUResource) Schema(ctx context.Context, req resource.SchemaRequest, resp *resource.SchemaResponse) {
	resp.Schema = schema.Schema{
		// This description is used by the documentation generator and the language server.
		MarkdownDescription: "Manages a Samba organizational unit (OU). OUs are containers for users and groups; " +
			"reference them from the `ou` attribute of `samba_user` and `samba_group`. " +
			"An OU must be empty before it can be destroyed.",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				MarkdownDescription: "The DN of the OU relative to the domain, e.g. `OU=Staff`.",
				Computed:            true,
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.UseStateForUnknown(),
				},
			},
			"name": schema.StringAttribute{
				MarkdownDescription: "The name of the organizational unit. This becomes the OU component of the distinguished name.",
				Required:            true,
				Validators: []validator.String{
					stringvalidator.LengthBetween(1, 64),
					stringvalidator.RegexMatches(
						ouNamePattern,
						"OU name cannot contain double quotes, backslashes, hash, plus, comma, semicolon, angle brackets, carriage return, newline, or forward slash",
					),
				},
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.RequiresReplace(),
				},
			},
			"path": schema.StringAttribute{
				MarkdownDescription: "The parent OU path relative to the domain, e.g. `OU=Departments`. " +
					"Omit to create the OU at the domain root.",
				Optional: true,
				Validators: []validator.String{
					validators.IsRelativeOU(),
				},
				PlanModifiers: []planmodifier.String{
					planmodifiers.RequiresReplaceUnlessCaseChange(),
				},
			},
			"description": schema.StringAttribute{
				MarkdownDescription: "A description of the OU. Set only at creation, so changing it replaces the OU.",
				Optional:            true,
				Validators: []validator.String{
					stringvalidator.LengthAtMost(1024),
				},
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.RequiresReplace(),
				},
			},
			"dn": schema.StringAttribute{
				MarkdownDescription: "The DN of the OU relative to the domain, suitable for the `ou` attribute of other resources.",
				Computed:            true,
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.UseStateForUnknown(),
				},
			},
		},
	}
}

func (r *OUResource) Configure(ctx context.Context, req resource.ConfigureRequest, resp *resource.ConfigureResponse) {
	r.data = providerDataFrom(req.ProviderData, "Resource", &resp.Diagnostics)
}

func (r *OUResource) Create(ctx context.Context, req resource.CreateRequest, resp *resource.CreateResponse) {
	var data OUResourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.Plan.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	dn := ouDN(data.Name.ValueString(), data.Path.ValueString())
	done := samba.LogResourceOperation(ctx, "samba_ou", "create", map[string]any{"dn": dn})
	defer func() { done(diagnosticsError(resp.Diagnostics)) }()

	session := liveSession(ctx, r.data, &resp.Diagnostics)
	if session == nil {
		return
	}

	if err := r.data.Directory.CreateOU(ctx, session, dn, data.Description.ValueString()); err != nil {
		addOperationError(&resp.Diagnostics, "Error Creating Organizational Unit", "create "+dn, err)
		return
	}

	listed, err := r.data.Directory.GetOU(ctx, session, dn)
	if err != nil {
		addOperationError(&resp.Diagnostics, "Error Creating Organizational Unit", "read "+dn+" after it was created", err)
		listed = dn
	}

	data.ID = types.StringValue(listed)
	data.DN = types.StringValue(listed)

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

func (r *OUResource) Read(ctx context.Context, req resource.ReadRequest, resp *resource.ReadResponse) {
	var data OUResourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.State.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	session := liveSession(ctx, r.data, &resp.Diagnostics)
	if session == nil {
		return
	}

	listed, err := r.data.Directory.GetOU(ctx, session, data.ID.ValueString())
	if err != nil {
		if samba.IsNotFoundError(err) {
			tflog.Info(ctx, "Samba organizational unit no longer exists, removing from state", map[string]any{
				"dn": data.ID.ValueString(),
			})
			resp.State.RemoveResource(ctx)
			return
		}

		addOperationError(&resp.Diagnostics, "Error Reading Organizational Unit", "read "+data.ID.ValueString(), err)
		return
	}

	data.ID = types.StringValue(listed)
	data.DN = types.StringValue(listed)

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

// Update is only reached for case-only changes to the path, as every other
// configurable attribute forces replacement.
func (r *OUResource) Update(ctx context.Context, req resource.UpdateRequest, resp *resource.UpdateResponse) {
	var data OUResourceModel

	resp.Diagnostics.Append(req.Plan.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

func (r *OUResource) Delete(ctx context.Context, req resource.DeleteRequest, resp *resource.DeleteResponse) {
	var data OUResourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.State.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	dn := data.ID.ValueString()
	done := samba.LogResourceOperation(ctx, "samba_ou", "delete", map[string]any{"dn": dn})
	defer func() { done(diagnosticsError(resp.Diagnostics)) }()

	session := liveSession(ctx, r.data, &resp.Diagnostics)
	if session == nil {
		return
	}

	existed, err := r.data.Directory.DeleteOU(ctx, session, dn)
	if err != nil {
		addOperationError(&resp.Diagnostics, "Error Deleting Organizational Unit", "delete "+dn, err)
		return
	}

	tflog.Debug(ctx, "Deleted Samba organizational unit", map[string]any{
		"dn":      dn,
		"existed": existed,
	})
}

// ImportState imports an OU by its DN, relative to the domain or absolute.
// The name and path are derived from the DN.
func (r *OUResource) ImportState(ctx context.Context, req resource.ImportStateRequest, resp *resource.ImportStateResponse) {
	name, parent, err := splitOUDN(req.ID)
	if err != nil {
		resp.Diagnostics.AddError(
			"Invalid Import ID",
			"Expected the DN of an organizational unit, e.g. OU=Staff or OU=Team,OU=Staff: "+err.Error(),
		)
		return
	}

	resp.Diagnostics.Append(resp.State.SetAttribute(ctx, path.Root("id"), req.ID)...)
	resp.Diagnostics.Append(resp.State.SetAttribute(ctx, path.Root("name"), name)...)
	if parent != "" {
		resp.Diagnostics.Append(resp.State.SetAttribute(ctx, path.Root("path"), parent)...)
	}
}

// ouDN builds the relative DN of an OU named name under parent.
func ouDN(name, parent string) string {
	dn := "OU=" + strings.TrimSpace(name)
	if parent = strings.TrimSpace(parent); parent != "" {
		dn += "," + parent
	}
	return dn
}

// splitOUDN is the inverse of ouDN. DC= components are dropped.
func splitOUDN(dn string) (name, parent string, err error) {
	parsed, err := ldap.ParseDN(dn)
	if err != nil {
		return "", "", err
	}

	var rdns []string
	for i, rdn := range parsed.RDNs {
		if len(rdn.Attributes) != 1 {
			return "", "", fmt.Errorf("multi-valued RDNs are not supported")
		}
		attr := rdn.Attributes[0]
		if strings.EqualFold(attr.Type, "DC") {
			continue
		}
		if i == 0 {
			if !strings.EqualFold(attr.Type, "OU") {
				return "", "", fmt.Errorf("%q does not name an OU", dn)
			}
			name = attr.Value
			continue
		}
		rdns = append(rdns, strings.ToUpper(attr.Type)+"="+attr.Value)
	}

	if name == "" {
		return "", "", fmt.Errorf("%q does not name an OU", dn)
	}
	return name, strings.Join(rdns, ","), nil
}
