package samba

import (
	"context"
	"strings"

	"gopkg.in/ini.v1"
)

// ServerConfig is the effective smb.conf of the domain controller.
type ServerConfig struct {
	ServerRole  string
	Realm       string
	Workgroup   string
	NetbiosName string
	// Global holds every [global] parameter, keyed by lower-case name.
	Global map[string]string
	// Shares lists the share sections in file order.
	Shares []string
}

// ServerConfig reads the effective server configuration with "testparm".
func (d *Directory) ServerConfig(ctx context.Context, s *Session) (*ServerConfig, error) {
	var cfg *ServerConfig

	err := LogOperation(ctx, "server config", nil, func() error {
		res, err := d.run(ctx, s, "server config", args("testparm", "--suppress-prompt"))
		if err != nil {
			return err
		}
		cfg, err = ParseTestparm(res.Stdout)
		return err
	})

	return cfg, err
}

// ParseTestparm parses the smb.conf dump printed by "testparm". Banner lines
// before the first section are skipped.
func ParseTestparm(raw string) (*ServerConfig, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		InsensitiveKeys:         true,
		SkipUnrecognizableLines: true,
		IgnoreInlineComment:     true,
		KeyValueDelimiters:      "=",
	}, []byte(raw))
	if err != nil {
		return nil, NewError("parse testparm", ErrorKindParse, err.Error(), err)
	}

	global, err := file.GetSection("global")
	if err != nil {
		return nil, NewParseError("parse testparm", "global", "section missing")
	}

	cfg := &ServerConfig{
		Global: make(map[string]string, len(global.Keys())),
		Shares: []string{},
	}
	for _, key := range global.Keys() {
		cfg.Global[key.Name()] = strings.TrimSpace(key.Value())
	}

	cfg.ServerRole = cfg.Global["server role"]
	cfg.Realm = cfg.Global["realm"]
	cfg.Workgroup = cfg.Global["workgroup"]
	cfg.NetbiosName = cfg.Global["netbios name"]

	for _, section := range file.Sections() {
		name := section.Name()
		if name == ini.DefaultSection || strings.EqualFold(name, "global") {
			continue
		}
		cfg.Shares = append(cfg.Shares, name)
	}

	return cfg, nil
}
