package samba

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Transport runs commands over an established connection to the domain controller.
type Transport interface {
	// Exec runs one command line and returns its full output and exit status.
	// A non-nil error means the command could not be run or its outcome is unknown.
	Exec(ctx context.Context, command string) (stdout, stderr string, exitCode int, err error)

	// Ping checks that the remote end still responds.
	Ping(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}

// Dialer opens a Transport for a validated configuration.
type Dialer func(ctx context.Context, cfg *SessionConfig) (Transport, error)

// Session is one live connection to a domain controller.
//
// Commands against a Session are serialized. A Session that has died is never
// revived; callers create a new one with Connect.
type Session struct {
	id        string
	host      string
	username  string
	createdAt time.Time
	transport Transport

	slot chan struct{}
	done chan struct{}

	alive     atomic.Bool
	closeOnce sync.Once

	mu     sync.Mutex
	cause  error
	policy *PasswordPolicy
}

// Connect opens a session over SSH.
func Connect(ctx context.Context, cfg *SessionConfig) (*Session, error) {
	return ConnectWith(ctx, cfg, DialSSH)
}

// ConnectWith opens a session using the given dialer, or SSH when dial is nil.
func ConnectWith(ctx context.Context, cfg *SessionConfig, dial Dialer) (*Session, error) {
	if cfg == nil {
		return nil, NewValidationError("connect", "config", "session config is required")
	}
	if dial == nil {
		dial = DialSSH
	}

	c := *cfg
	if err := c.ApplyDefaults(); err != nil {
		return nil, NewError("connect", ErrorKindValidation, "invalid session defaults", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	fields := map[string]any{
		"host":     c.Host,
		"port":     c.Port,
		"username": c.Username,
	}
	LogConnectionEvent(ctx, "connection_attempt", fields)

	transport, err := dial(ctx, &c)
	if err != nil {
		fields["error"] = err.Error()
		switch KindOf(err) {
		case ErrorKindAuth:
			LogConnectionEvent(ctx, "authentication_failed", fields)
		case ErrorKindHostKey:
			LogConnectionEvent(ctx, "host_key_rejected", fields)
		default:
			LogConnectionEvent(ctx, "connection_failed", fields)
		}
		return nil, WrapError("connect", err)
	}

	s := NewSession(transport, &c)
	if c.KeepAliveInterval > 0 {
		go s.keepAlive(c.KeepAliveInterval)
	}

	fields["session_id"] = s.id
	LogConnectionEvent(ctx, "session_established", fields)

	return s, nil
}

// NewSession wraps an already-established transport.
func NewSession(transport Transport, cfg *SessionConfig) *Session {
	s := &Session{
		id:        uuid.NewString(),
		createdAt: time.Now(),
		transport: transport,
		slot:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	if cfg != nil {
		s.host = cfg.Host
		s.username = cfg.Username
	}
	s.alive.Store(true)
	return s
}

// ID uniquely identifies the session in logs.
func (s *Session) ID() string { return s.id }

// Host is the domain controller this session is connected to.
func (s *Session) Host() string { return s.host }

// Username is the SSH login user.
func (s *Session) Username() string { return s.username }

// CreatedAt is when the session was established.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// IsAlive checks the connection with one keep-alive request. A failed check marks the session dead.
func (s *Session) IsAlive(ctx context.Context) bool {
	if s == nil || !s.alive.Load() {
		return false
	}

	if err := s.transport.Ping(ctx); err != nil {
		s.markDead(err)
		LogConnectionEvent(ctx, "session_lost", map[string]any{
			"session_id": s.id,
			"host":       s.host,
			"error":      err.Error(),
		})
		return false
	}

	return true
}

// Err returns the failure that killed the session, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cause
}

// Close disconnects. It is safe to call more than once.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.alive.Store(false)
		close(s.done)
		err = s.transport.Close()
	})
	return err
}

func (s *Session) markDead(cause error) {
	if !s.alive.Swap(false) {
		return
	}
	s.mu.Lock()
	s.cause = cause
	s.mu.Unlock()
}

func (s *Session) deadError(operation string) error {
	return NewError(operation, ErrorKindSessionDead, "session is no longer alive, reconnect before continuing", s.Err())
}

// acquire waits for exclusive use of the session.
func (s *Session) acquire(ctx context.Context) error {
	select {
	case s.slot <- struct{}{}:
		return nil
	case <-s.done:
		return s.deadError("execute")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) release() {
	<-s.slot
}

func (s *Session) keepAlive(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			err := s.transport.Ping(ctx)
			cancel()
			if err != nil {
				s.markDead(err)
				return
			}
		}
	}
}

func (s *Session) rememberPolicy(p *PasswordPolicy) {
	if s == nil || p == nil {
		return
	}
	cp := *p
	s.mu.Lock()
	s.policy = &cp
	s.mu.Unlock()
}

// knownPolicy returns the last password policy read on this session, or nil.
func (s *Session) knownPolicy() *PasswordPolicy {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.policy == nil {
		return nil
	}
	cp := *s.policy
	return &cp
}
