package provider

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/terraform-plugin-framework-validators/int64validator"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/boolplanmodifier"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/int64planmodifier"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/planmodifier"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/stringplanmodifier"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/terraform-provider-samba/internal/provider/helpers"
	"github.com/isometry/terraform-provider-samba/internal/samba"
)

const passwordPolicyID = "domain"

// Ensure provider defined types fully satisfy framework interfaces.
var _ resource.Resource = &PasswordPolicyResource{}
var _ resource.ResourceWithImportState = &PasswordPolicyResource{}

// NewPasswordPolicyResource creates a new instance of the password policy resource.
func NewPasswordPolicyResource() resource.Resource {
	return &PasswordPolicyResource{}
}

// PasswordPolicyResource manages the domain-wide password and lockout policy.
type PasswordPolicyResource struct {
	data *samba.ProviderData
}

// PasswordPolicyResourceModel describes the resource data model.
type PasswordPolicyResourceModel struct {
	ID                       types.String `tfsdk:"id"`
	MinPasswordLength        types.Int64  `tfsdk:"min_password_length"`
	PasswordComplexity       types.Bool   `tfsdk:"password_complexity"`
	StorePlaintext           types.Bool   `tfsdk:"store_plaintext"`
	PasswordHistoryLength    types.Int64  `tfsdk:"password_history_length"`
	MinPasswordAgeDays       types.Int64  `tfsdk:"min_password_age_days"`
	MaxPasswordAgeDays       types.Int64  `tfsdk:"max_password_age_days"`
	LockoutThreshold         types.Int64  `tfsdk:"account_lockout_threshold"`
	LockoutDurationMinutes   types.Int64  `tfsdk:"account_lockout_duration_minutes"`
	ResetLockoutAfterMinutes types.Int64  `tfsdk:"reset_account_lockout_after_minutes"`
}

func (r *PasswordPolicyResource) Metadata(ctx context.Context, req resource.MetadataRequest, resp *resource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_password_policy"
}

func (r *PasswordPolicyResource) Schema(ctx context.Context, req resource.SchemaRequest, resp *resource.SchemaResponse) {
	keepInt := []planmodifier.Int64{int64planmodifier.UseStateForUnknown()}
	keepBool := []planmodifier.Bool{boolplanmodifier.UseStateForUnknown()}
	unlimitedOr := func(minimum, maximum int64) []validator.Int64 {
		return []validator.Int64{
			int64validator.Any(
				int64validator.OneOf(helpers.Unlimited),
				int64validator.Between(minimum, maximum),
			),
		}
	}

	resp.Schema = schema.Schema{
		MarkdownDescription: "Manages the domain password and account lockout policy. There is one policy per domain: " +
			"attributes that are not set are left as they are, and destroying the resource only removes it from state.",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				MarkdownDescription: "Always `domain`.",
				Computed:            true,
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.UseStateForUnknown(),
				},
			},
			"min_password_length": schema.Int64Attribute{
				MarkdownDescription: "Minimum password length.",
				Optional:            true,
				Computed:            true,
				Validators:          []validator.Int64{int64validator.Between(0, 255)},
				PlanModifiers:       keepInt,
			},
			"password_complexity": schema.BoolAttribute{
				MarkdownDescription: "Require passwords to mix character classes and avoid the account name.",
				Optional:            true,
				Computed:            true,
				PlanModifiers:       keepBool,
			},
			"store_plaintext": schema.BoolAttribute{
				MarkdownDescription: "Store passwords with reversible encryption.",
				Optional:            true,
				Computed:            true,
				PlanModifiers:       keepBool,
			},
			"password_history_length": schema.Int64Attribute{
				MarkdownDescription: "Number of previous passwords that cannot be reused.",
				Optional:            true,
				Computed:            true,
				Validators:          []validator.Int64{int64validator.Between(0, 24)},
				PlanModifiers:       keepInt,
			},
			"min_password_age_days": schema.Int64Attribute{
				MarkdownDescription: "Days before a password may be changed again.",
				Optional:            true,
				Computed:            true,
				Validators:          []validator.Int64{int64validator.Between(0, 998)},
				PlanModifiers:       keepInt,
			},
			"max_password_age_days": schema.Int64Attribute{
				MarkdownDescription: "Days after which a password expires, or `-1` for passwords that never expire.",
				Optional:            true,
				Computed:            true,
				Validators:          unlimitedOr(1, 999),
				PlanModifiers:       keepInt,
			},
			"account_lockout_threshold": schema.Int64Attribute{
				MarkdownDescription: "Failed logons before an account is locked, or `-1` to never lock accounts.",
				Optional:            true,
				Computed:            true,
				Validators:          unlimitedOr(1, 999),
				PlanModifiers:       keepInt,
			},
			"account_lockout_duration_minutes": schema.Int64Attribute{
				MarkdownDescription: "Minutes an account stays locked, or `-1` to keep it locked until an administrator unlocks it.",
				Optional:            true,
				Computed:            true,
				Validators:          unlimitedOr(1, 99999),
				PlanModifiers:       keepInt,
			},
			"reset_account_lockout_after_minutes": schema.Int64Attribute{
				MarkdownDescription: "Minutes after which the failed logon counter is reset.",
				Optional:            true,
				Computed:            true,
				Validators:          []validator.Int64{int64validator.Between(1, 99999)},
				PlanModifiers:       keepInt,
			},
		},
	}
}

func (r *PasswordPolicyResource) Configure(ctx context.Context, req resource.ConfigureRequest, resp *resource.ConfigureResponse) {
	r.data = providerDataFrom(req.ProviderData, "Resource", &resp.Diagnostics)
}

func (r *PasswordPolicyResource) Create(ctx context.Context, req resource.CreateRequest, resp *resource.CreateResponse) {
	var data PasswordPolicyResourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.Plan.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	r.apply(ctx, "create", &data, &resp.State, &resp.Diagnostics)
}

func (r *PasswordPolicyResource) Read(ctx context.Context, req resource.ReadRequest, resp *resource.ReadResponse) {
	var data PasswordPolicyResourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.State.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	session := liveSession(ctx, r.data, &resp.Diagnostics)
	if session == nil {
		return
	}

	policy, err := r.data.Directory.GetPasswordPolicy(ctx, session)
	if err != nil {
		addOperationError(&resp.Diagnostics, "Error Reading Password Policy", "read the password policy", err)
		return
	}

	updateModelFromPolicy(&data, policy)

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

func (r *PasswordPolicyResource) Update(ctx context.Context, req resource.UpdateRequest, resp *resource.UpdateResponse) {
	var data PasswordPolicyResourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.Plan.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	r.apply(ctx, "update", &data, &resp.State, &resp.Diagnostics)
}

// Delete forgets the policy. The domain always has one, so nothing is changed remotely.
func (r *PasswordPolicyResource) Delete(ctx context.Context, req resource.DeleteRequest, resp *resource.DeleteResponse) {
	ctx = initializeLogging(ctx)

	tflog.Info(ctx, "Removing password policy from state; the domain policy is left unchanged")
}

// ImportState accepts any identifier; the policy is read in full afterwards.
func (r *PasswordPolicyResource) ImportState(ctx context.Context, req resource.ImportStateRequest, resp *resource.ImportStateResponse) {
	resp.Diagnostics.Append(resp.State.SetAttribute(ctx, path.Root("id"), passwordPolicyID)...)
}

func (r *PasswordPolicyResource) apply(ctx context.Context, operation string, data *PasswordPolicyResourceModel, state stateSetter, diags *diag.Diagnostics) {
	update := policyUpdateFromModel(data)

	done := samba.LogResourceOperation(ctx, "samba_password_policy", operation, nil)
	defer func() { done(diagnosticsError(*diags)) }()

	session := liveSession(ctx, r.data, diags)
	if session == nil {
		return
	}

	policy, err := r.data.Directory.SetPasswordPolicy(ctx, session, update)
	if err != nil {
		addOperationError(diags, "Error Setting Password Policy", "update the password policy", err)

		if errors.Is(err, samba.ErrPartialSuccess) {
			if current, readErr := r.data.Directory.GetPasswordPolicy(ctx, session); readErr == nil {
				updateModelFromPolicy(data, current)
				diags.Append(state.Set(ctx, data)...)
			}
		}
		return
	}

	updateModelFromPolicy(data, policy)

	diags.Append(state.Set(ctx, data)...)
}

// policyUpdateFromModel sets only the attributes with known values.
func policyUpdateFromModel(m *PasswordPolicyResourceModel) *samba.PolicyUpdate {
	u := &samba.PolicyUpdate{}

	if known(m.MinPasswordLength) {
		v := int(m.MinPasswordLength.ValueInt64())
		u.MinLength = &v
	}
	if known(m.PasswordComplexity) {
		v := m.PasswordComplexity.ValueBool()
		u.Complexity = &v
	}
	if known(m.StorePlaintext) {
		v := m.StorePlaintext.ValueBool()
		u.StorePlaintext = &v
	}
	if known(m.PasswordHistoryLength) {
		v := int(m.PasswordHistoryLength.ValueInt64())
		u.HistoryLength = &v
	}
	if known(m.MinPasswordAgeDays) {
		v := time.Duration(m.MinPasswordAgeDays.ValueInt64()) * 24 * time.Hour
		u.MinAge = &v
	}
	if known(m.MaxPasswordAgeDays) {
		v := helpers.PeriodFromUnits(m.MaxPasswordAgeDays.ValueInt64(), 24*time.Hour)
		u.MaxAge = &v
	}
	if known(m.LockoutThreshold) {
		v := helpers.ThresholdFromValue(m.LockoutThreshold.ValueInt64())
		u.LockoutThreshold = &v
	}
	if known(m.LockoutDurationMinutes) {
		v := helpers.PeriodFromUnits(m.LockoutDurationMinutes.ValueInt64(), time.Minute)
		u.LockoutDuration = &v
	}
	if known(m.ResetLockoutAfterMinutes) {
		v := time.Duration(m.ResetLockoutAfterMinutes.ValueInt64()) * time.Minute
		u.ResetLockoutAfter = &v
	}

	return u
}

func updateModelFromPolicy(m *PasswordPolicyResourceModel, p *samba.PasswordPolicy) {
	m.ID = types.StringValue(passwordPolicyID)
	m.MinPasswordLength = types.Int64Value(int64(p.MinLength))
	m.PasswordComplexity = types.BoolValue(p.Complexity)
	m.StorePlaintext = types.BoolValue(p.StorePlaintext)
	m.PasswordHistoryLength = types.Int64Value(int64(p.HistoryLength))
	m.MinPasswordAgeDays = types.Int64Value(int64(p.MinAge / (24 * time.Hour)))
	m.MaxPasswordAgeDays = types.Int64Value(helpers.PeriodUnits(p.MaxAge, 24*time.Hour))
	m.LockoutThreshold = types.Int64Value(helpers.ThresholdValue(p.LockoutThreshold))
	m.LockoutDurationMinutes = types.Int64Value(helpers.PeriodUnits(p.LockoutDuration, time.Minute))
	m.ResetLockoutAfterMinutes = types.Int64Value(int64(p.ResetLockoutAfter / time.Minute))
}

type knowable interface {
	IsNull() bool
	IsUnknown() bool
}

func known(v knowable) bool {
	return !v.IsNull() && !v.IsUnknown()
}
