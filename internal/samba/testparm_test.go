package samba

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTestparm = `Load smb config files from /etc/samba/smb.conf
Loaded services file OK.
Weak crypto is allowed by GnuTLS (e.g. NTLM as a compatibility fallback)

Server role: ROLE_ACTIVE_DIRECTORY_DC

# Global parameters
[global]
	netbios name = DC1
	realm = SAMDOM.EXAMPLE.COM
	server role = active directory domain controller
	workgroup = SAMDOM
	idmap_ldb:use rfc2307 = yes
	template shell = /bin/bash ; login shell

[sysvol]
	path = /var/lib/samba/sysvol
	read only = No

[netlogon]
	path = /var/lib/samba/sysvol/samdom.example.com/scripts
	read only = No
`

func TestParseTestparm(t *testing.T) {
	cfg, err := ParseTestparm(sampleTestparm)
	require.NoError(t, err)

	assert.Equal(t, "active directory domain controller", cfg.ServerRole)
	assert.Equal(t, "SAMDOM.EXAMPLE.COM", cfg.Realm)
	assert.Equal(t, "SAMDOM", cfg.Workgroup)
	assert.Equal(t, "DC1", cfg.NetbiosName)
	assert.Equal(t, "yes", cfg.Global["idmap_ldb:use rfc2307"])
	assert.Equal(t, "/bin/bash ; login shell", cfg.Global["template shell"])
	assert.Equal(t, []string{"sysvol", "netlogon"}, cfg.Shares)
}

func TestParseTestparm_KeysAreCaseInsensitive(t *testing.T) {
	cfg, err := ParseTestparm("[global]\n\tNetBIOS Name = DC2\n\tRealm = EXAMPLE.ORG\n")
	require.NoError(t, err)

	assert.Equal(t, "DC2", cfg.NetbiosName)
	assert.Equal(t, "EXAMPLE.ORG", cfg.Realm)
	assert.Empty(t, cfg.Shares)
}

func TestParseTestparm_MissingGlobal(t *testing.T) {
	_, err := ParseTestparm("Loaded services file OK.\n[homes]\n\tread only = No\n")
	assert.ErrorIs(t, err, ErrParse)
}

func TestDirectory_ServerConfig(t *testing.T) {
	dc, s, d := newTestDirectory(t)

	cfg, err := d.ServerConfig(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, "SAMDOM", cfg.Workgroup)
	assert.Equal(t, 1, dc.callCount("testparm"))
}
