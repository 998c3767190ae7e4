package prefs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isometry/terraform-provider-samba/internal/samba"
)

var envVars = []string{
	"SAMBA_HOST",
	"SAMBA_PORT",
	"SAMBA_USERNAME",
	"SAMBA_CONNECT_AUTOMATICALLY",
	"SAMBA_HOST_KEY_POLICY",
	"SAMBA_KNOWN_HOSTS_FILE",
	"SAMBA_USE_SUDO",
	"SAMBA_TOOL_PATH",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envVars {
		t.Setenv(k, "")
	}
}

func TestStore_LoadMissingFileGivesDefaults(t *testing.T) {
	clearEnv(t)
	store, err := NewStore(filepath.Join(t.TempDir(), "prefs.yaml"))
	require.NoError(t, err)

	p, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), p)
	assert.Equal(t, 22, p.Port)
	assert.Equal(t, samba.HostKeyPolicyStrict, p.HostKeyPolicy)
	assert.Equal(t, "samba-tool", p.ToolPath)
	assert.False(t, p.ConnectAutomatically)
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "samba-admin", "prefs.yaml")
	store, err := NewStore(path)
	require.NoError(t, err)

	want := &Preferences{
		Host:                 "dc1.samdom.example.com",
		Port:                 2222,
		Username:             "root",
		ConnectAutomatically: true,
		HostKeyPolicy:        samba.HostKeyPolicyAcceptNew,
		UseSudo:              true,
		ToolPath:             "/usr/local/samba/bin/samba-tool",
	}
	require.NoError(t, store.Save(want))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	dirInfo, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), dirInfo.Mode().Perm())

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestStore_LoadPartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "prefs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("host: dc2\nusername: admin\n"), 0o600))

	store, err := NewStore(path)
	require.NoError(t, err)

	p, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "dc2", p.Host)
	assert.Equal(t, "admin", p.Username)
	assert.Equal(t, 22, p.Port)
	assert.Equal(t, samba.HostKeyPolicyStrict, p.HostKeyPolicy)
}

func TestStore_LoadEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "prefs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("host: dc2\nport: 22\nuse_sudo: false\n"), 0o600))

	t.Setenv("SAMBA_HOST", "dc3.samdom.example.com")
	t.Setenv("SAMBA_PORT", "2200")
	t.Setenv("SAMBA_USE_SUDO", "true")
	t.Setenv("SAMBA_HOST_KEY_POLICY", "accept-new")

	store, err := NewStore(path)
	require.NoError(t, err)

	p, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "dc3.samdom.example.com", p.Host)
	assert.Equal(t, 2200, p.Port)
	assert.True(t, p.UseSudo)
	assert.Equal(t, samba.HostKeyPolicyAcceptNew, p.HostKeyPolicy)
}

func TestStore_LoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
		isValid bool
	}{
		{name: "unknown key", content: "host: dc1\npassword: hunter2\n"},
		{name: "malformed yaml", content: "host: [dc1\n"},
		{name: "bad port", content: "port: 0\n", isValid: true},
		{name: "bad policy", content: "host_key_policy: trust-all\n", isValid: true},
		{name: "bad env port", content: "host: dc1\n", env: map[string]string{"SAMBA_PORT": "ssh"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := filepath.Join(t.TempDir(), "prefs.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			store, err := NewStore(path)
			require.NoError(t, err)

			p, err := store.Load()
			assert.Nil(t, p)
			require.Error(t, err)
			assert.Equal(t, tt.isValid, samba.IsValidationError(err))
		})
	}
}

func TestStore_SaveRefusesSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "elsewhere.yaml")
	require.NoError(t, os.WriteFile(target, nil, 0o600))
	link := filepath.Join(dir, "prefs.yaml")
	require.NoError(t, os.Symlink(target, link))

	store, err := NewStore(link)
	require.NoError(t, err)

	assert.Error(t, store.Save(Default()))
	assert.ErrorIs(t, store.Save(nil), samba.ErrValidation)
}

func TestPreferences_SessionConfig(t *testing.T) {
	p := Default()
	p.Host = "dc1"
	p.Username = "root"
	p.UseSudo = true
	p.KnownHostsFile = "/etc/ssh/ssh_known_hosts"

	cfg := p.SessionConfig()
	assert.Equal(t, "dc1", cfg.Host)
	assert.Equal(t, 22, cfg.Port)
	assert.Equal(t, "root", cfg.Username)
	assert.True(t, cfg.UseSudo)
	assert.Equal(t, "/etc/ssh/ssh_known_hosts", cfg.KnownHostsFile)
	assert.Equal(t, samba.HostKeyPolicyStrict, cfg.HostKeyPolicy)
	assert.Empty(t, cfg.Password)

	// Credentials are the caller's to add.
	assert.ErrorIs(t, cfg.Validate(), samba.ErrValidation)
	cfg.Password = "secret"
	assert.NoError(t, cfg.Validate())
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	t.Setenv("HOME", "/tmp/home")

	path, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("samba-admin", "prefs.yaml"), filepath.Join(filepath.Base(filepath.Dir(path)), filepath.Base(path)))

	store, err := NewStore("")
	require.NoError(t, err)
	assert.Equal(t, path, store.Path())
}
