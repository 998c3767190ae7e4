package samba

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/google/uuid"
)

// HostKeyPolicy controls how unknown server host keys are handled.
type HostKeyPolicy string

const (
	// HostKeyPolicyStrict rejects any host whose key is not already in known_hosts.
	HostKeyPolicyStrict HostKeyPolicy = "strict"
	// HostKeyPolicyAcceptNew records the key of a host seen for the first time.
	// A key that differs from a recorded one is always rejected.
	HostKeyPolicyAcceptNew HostKeyPolicy = "accept-new"
)

// SessionConfig holds everything needed to open a session to a domain controller.
type SessionConfig struct {
	// Connection settings
	Host           string        // Domain controller hostname or address
	Port           int           `default:"22"`
	Username       string        // SSH login user
	ConnectTimeout time.Duration `default:"30s"`

	// Authentication settings, password and/or key
	Password             string
	PrivateKey           []byte // PEM-encoded private key
	PrivateKeyFile       string
	PrivateKeyPassphrase string

	// Host identity
	KnownHostsFile string        // Defaults to ~/.ssh/known_hosts
	HostKeyPolicy  HostKeyPolicy `default:"strict"`

	// Liveness and execution
	KeepAliveInterval time.Duration `default:"30s"`
	CommandTimeout    time.Duration `default:"2m"`
	ToolPath          string        `default:"samba-tool"`
	UseSudo           bool          // Prefix commands with "sudo -n"
}

// DefaultSessionConfig returns a configuration with every default applied.
func DefaultSessionConfig() *SessionConfig {
	cfg := &SessionConfig{}
	if err := defaults.Set(cfg); err != nil {
		panic(fmt.Sprintf("invalid session config defaults: %v", err))
	}
	return cfg
}

// ApplyDefaults fills zero-valued fields.
func (c *SessionConfig) ApplyDefaults() error {
	return defaults.Set(c)
}

// Address returns the host:port dial address.
func (c *SessionConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate checks the configuration locally, before any network activity.
func (c *SessionConfig) Validate() error {
	const op = "connect"

	if strings.TrimSpace(c.Host) == "" {
		return NewValidationError(op, "host", "host must not be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return NewValidationError(op, "port", fmt.Sprintf("port %d is outside 1..65535", c.Port))
	}
	if strings.TrimSpace(c.Username) == "" {
		return NewValidationError(op, "username", "username must not be empty")
	}
	switch c.HostKeyPolicy {
	case HostKeyPolicyStrict, HostKeyPolicyAcceptNew:
	default:
		return NewValidationError(op, "host_key_policy", fmt.Sprintf("unsupported host key policy %q", c.HostKeyPolicy))
	}
	return nil
}

// ExecutorConfig derives the command executor settings.
func (c *SessionConfig) ExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		ToolPath:       c.ToolPath,
		UseSudo:        c.UseSudo,
		DefaultTimeout: c.CommandTimeout,
	}
}

// CommandRequest describes a single samba-tool invocation.
type CommandRequest struct {
	Args      []string      // Arguments after the tool name, unquoted
	Timeout   time.Duration // Zero uses the executor default
	Sensitive []int         // Indexes into Args that must never be logged
}

// Redacted returns the arguments with sensitive positions masked.
func (r CommandRequest) Redacted() []string {
	out := make([]string, len(r.Args))
	copy(out, r.Args)
	for _, i := range r.Sensitive {
		if i < 0 || i >= len(out) {
			continue
		}
		if prefix, _, ok := strings.Cut(out[i], "="); ok && strings.HasPrefix(prefix, "--") {
			out[i] = prefix + "=[REDACTED]"
		} else {
			out[i] = "[REDACTED]"
		}
	}
	return out
}

// CommandResult is the full outcome of a remote invocation.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Succeeded reports a zero exit status.
func (r *CommandResult) Succeeded() bool {
	return r != nil && r.ExitCode == 0
}

// User Account Control flags relevant to account state.
const (
	UACAccountDisable       = 0x00000002
	UACLockout              = 0x00000010
	UACPasswordNotRequired  = 0x00000020
	UACNormalAccount        = 0x00000200
	UACDontExpirePassword   = 0x00010000
	UACSmartcardRequired    = 0x00040000
	UACPasswordExpired      = 0x00800000
	UACWorkstationTrust     = 0x00001000
	UACServerTrustAccount   = 0x00002000
	UACTrustedForDelegation = 0x00080000
)

// Expiry is a point in time that may be "never".
type Expiry struct {
	Never bool
	At    time.Time
}

func (e Expiry) String() string {
	if e.Never {
		return "never"
	}
	return e.At.UTC().Format(time.RFC3339)
}

// User represents a directory user account.
type User struct {
	Name                 string // sAMAccountName
	DN                   string
	GUID                 uuid.UUID
	SID                  string
	GivenName            string
	Surname              string
	Description          string
	UserAccountControl   int64
	Enabled              bool
	LockedOut            bool
	PasswordNeverExpires bool
	PasswordExpired      bool
	PasswordLastSet      time.Time // Zero if never set
	AccountExpires       Expiry
	WhenCreated          time.Time
	Groups               []string // Group names from memberOf
	BuiltIn              bool
}

// CreateUserRequest describes a new user account.
type CreateUserRequest struct {
	Name                  string
	Password              string
	GivenName             string
	Surname               string
	Description           string
	OU                    string // Relative OU DN, e.g. "OU=Staff"; empty for the default Users container
	MustChangeAtNextLogin bool
	Enabled               *bool // Nil means enabled
}

func (r *CreateUserRequest) wantEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// Group represents a directory group.
type Group struct {
	Name        string
	DN          string
	GUID        uuid.UUID
	SID         string
	Description string
	Members     []string // Member account names
	BuiltIn     bool
}

// CreateGroupRequest describes a new group.
type CreateGroupRequest struct {
	Name        string
	Description string
	OU          string
}

// Period is a policy duration that may be unlimited.
type Period struct {
	Duration time.Duration
	Never    bool // Never expires / no limit, distinct from a zero duration
}

// NeverPeriod returns the unlimited period.
func NeverPeriod() Period {
	return Period{Never: true}
}

// PeriodOf returns a finite period.
func PeriodOf(d time.Duration) Period {
	return Period{Duration: d}
}

// Seconds returns the finite length in seconds, or -1 when unlimited.
func (p Period) Seconds() int64 {
	if p.Never {
		return -1
	}
	return int64(p.Duration / time.Second)
}

func (p Period) String() string {
	if p.Never {
		return "never"
	}
	return p.Duration.String()
}

// Threshold is an attempt count where zero on the wire means "no limit".
type Threshold struct {
	Attempts  int
	Unlimited bool
}

// PasswordPolicy is the domain-wide password and lockout policy.
type PasswordPolicy struct {
	MinLength         int
	Complexity        bool
	StorePlaintext    bool
	HistoryLength     int
	MinAge            time.Duration
	MaxAge            Period
	LockoutThreshold  Threshold
	LockoutDuration   Period // Never means locked until an administrator unlocks
	ResetLockoutAfter time.Duration
}

// PolicyUpdate changes only the non-nil fields of the password policy.
type PolicyUpdate struct {
	MinLength         *int
	Complexity        *bool
	StorePlaintext    *bool
	HistoryLength     *int
	MinAge            *time.Duration
	MaxAge            *Period
	LockoutThreshold  *Threshold
	LockoutDuration   *Period
	ResetLockoutAfter *time.Duration
}

// IsEmpty reports whether the update changes nothing.
func (u *PolicyUpdate) IsEmpty() bool {
	return u == nil || (u.MinLength == nil && u.Complexity == nil && u.StorePlaintext == nil &&
		u.HistoryLength == nil && u.MinAge == nil && u.MaxAge == nil &&
		u.LockoutThreshold == nil && u.LockoutDuration == nil && u.ResetLockoutAfter == nil)
}

// DomainInfo is the output of "domain info".
type DomainInfo struct {
	Forest        string
	Domain        string
	NetbiosDomain string
	DCName        string
	DCNetbiosName string
	ServerSite    string
	ClientSite    string
}
