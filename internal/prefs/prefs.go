// Package prefs persists the non-secret connection preferences of a Samba
// administration client.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/creasty/defaults"
	"github.com/goccy/go-yaml"
	"github.com/joeshaw/envdecode"

	"github.com/isometry/terraform-provider-samba/internal/samba"
)

const (
	dirPerm  = 0o700
	filePerm = 0o600
)

// Preferences are remembered between runs. Secrets are never stored here.
type Preferences struct {
	Host                 string              `yaml:"host" env:"SAMBA_HOST"`
	Port                 int                 `yaml:"port" env:"SAMBA_PORT" default:"22"`
	Username             string              `yaml:"username" env:"SAMBA_USERNAME"`
	ConnectAutomatically bool                `yaml:"connect_automatically" env:"SAMBA_CONNECT_AUTOMATICALLY"`
	HostKeyPolicy        samba.HostKeyPolicy `yaml:"host_key_policy" env:"SAMBA_HOST_KEY_POLICY" default:"strict"`
	KnownHostsFile       string              `yaml:"known_hosts_file,omitempty" env:"SAMBA_KNOWN_HOSTS_FILE"`
	UseSudo              bool                `yaml:"use_sudo" env:"SAMBA_USE_SUDO"`
	ToolPath             string              `yaml:"samba_tool_path" env:"SAMBA_TOOL_PATH" default:"samba-tool"`
}

// Default returns preferences with every default applied.
func Default() *Preferences {
	p := &Preferences{}
	if err := defaults.Set(p); err != nil {
		panic(fmt.Sprintf("invalid preference defaults: %v", err))
	}
	return p
}

// Validate checks the values that would otherwise fail only at connect time.
func (p *Preferences) Validate() error {
	const op = "load preferences"

	if p.Port < 1 || p.Port > 65535 {
		return samba.NewValidationError(op, "port", fmt.Sprintf("port %d is outside 1..65535", p.Port))
	}
	switch p.HostKeyPolicy {
	case samba.HostKeyPolicyStrict, samba.HostKeyPolicyAcceptNew:
	default:
		return samba.NewValidationError(op, "host_key_policy", fmt.Sprintf("unsupported host key policy %q", p.HostKeyPolicy))
	}
	return nil
}

// SessionConfig seeds a session configuration from the preferences. Credentials
// must be added by the caller.
func (p *Preferences) SessionConfig() *samba.SessionConfig {
	cfg := samba.DefaultSessionConfig()
	cfg.Host = p.Host
	cfg.Port = p.Port
	cfg.Username = p.Username
	cfg.KnownHostsFile = p.KnownHostsFile
	cfg.UseSudo = p.UseSudo
	if p.HostKeyPolicy != "" {
		cfg.HostKeyPolicy = p.HostKeyPolicy
	}
	if p.ToolPath != "" {
		cfg.ToolPath = p.ToolPath
	}
	return cfg
}

// DefaultPath is samba-admin/prefs.yaml under the user configuration directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating user config directory: %w", err)
	}
	return filepath.Join(dir, "samba-admin", "prefs.yaml"), nil
}

// Store reads and writes preferences at a fixed path.
type Store struct {
	path string
}

// NewStore returns a store for path, or for DefaultPath when path is empty.
func NewStore(path string) (*Store, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}
	return &Store{path: path}, nil
}

// Path is the preferences file location.
func (s *Store) Path() string { return s.path }

// Load returns the stored preferences with SAMBA_* environment variables
// applied on top. A missing file yields the defaults.
func (s *Store) Load() (*Preferences, error) {
	p := Default()

	raw, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading preferences %s: %w", s.path, err)
	default:
		if err := yaml.UnmarshalWithOptions(raw, p, yaml.Strict()); err != nil {
			return nil, fmt.Errorf("parsing preferences %s: %w", s.path, err)
		}
	}

	if err := envdecode.Decode(p); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Save writes p atomically, owner-readable only.
func (s *Store) Save(p *Preferences) error {
	if p == nil {
		return samba.NewValidationError("save preferences", "preferences", "preferences are required")
	}
	if err := p.Validate(); err != nil {
		return err
	}

	if info, err := os.Lstat(s.path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("refusing to write preferences through symlink %s", s.path)
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding preferences: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), dirPerm); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(s.path), err)
	}
	return writeAtomic(s.path, data)
}

// writeAtomic writes data to a temporary sibling and renames it over path.
func writeAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()

	_, werr := f.Write(data)
	cerr := f.Close()
	if werr == nil {
		werr = cerr
	}
	if werr == nil {
		werr = os.Chmod(tmp, filePerm)
	}
	if werr == nil {
		werr = os.Rename(tmp, path)
	}
	if werr != nil {
		_ = os.Remove(tmp)
		return werr
	}
	return nil
}
