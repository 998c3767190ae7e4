package samba

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// ProviderData carries the session and directory facade to Terraform resources.
//
// The session is checked before each resource operation and replaced if it has
// died. Nothing reconnects in the middle of an operation.
type ProviderData struct {
	Directory *Directory

	config  *SessionConfig
	dial    Dialer
	mu      sync.Mutex
	session *Session
}

// NewProviderData wraps an established session.
func NewProviderData(cfg *SessionConfig, session *Session, dial Dialer) *ProviderData {
	if dial == nil {
		dial = DialSSH
	}
	return &ProviderData{
		Directory: NewDirectory(NewExecutor(cfg.ExecutorConfig())),
		config:    cfg,
		dial:      dial,
		session:   session,
	}
}

// Session returns a live session, reconnecting if the previous one has died.
func (pd *ProviderData) Session(ctx context.Context) (*Session, error) {
	pd.mu.Lock()
	defer pd.mu.Unlock()

	if pd.session != nil && pd.session.IsAlive(ctx) {
		return pd.session, nil
	}

	if pd.session != nil {
		tflog.Info(ctx, "Samba session is no longer alive, reconnecting", map[string]any{
			"session_id": pd.session.ID(),
			"host":       pd.config.Host,
		})
		_ = pd.session.Close()
		pd.session = nil
	}

	session, err := ConnectWith(ctx, pd.config, pd.dial)
	if err != nil {
		return nil, fmt.Errorf("reconnecting to %s: %w", pd.config.Host, err)
	}
	pd.session = session

	return session, nil
}

// Close disconnects the current session.
func (pd *ProviderData) Close() error {
	pd.mu.Lock()
	defer pd.mu.Unlock()

	if pd.session == nil {
		return nil
	}
	err := pd.session.Close()
	pd.session = nil
	return err
}
