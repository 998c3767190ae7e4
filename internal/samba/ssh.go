package samba

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// DialSSH connects and authenticates to cfg.Host, verifying its identity against known_hosts.
func DialSSH(ctx context.Context, cfg *SessionConfig) (Transport, error) {
	auth, release, err := authMethods(cfg)
	if err != nil {
		return nil, err
	}
	defer release()

	verifier, err := newHostKeyVerifier(cfg)
	if err != nil {
		return nil, err
	}

	clientConfig := &ssh.ClientConfig{
		User:            cfg.Username,
		Auth:            auth,
		HostKeyCallback: verifier.check,
		Timeout:         cfg.ConnectTimeout,
	}

	addr := cfg.Address()
	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &Error{
			Operation: "connect",
			Kind:      ErrorKindNetwork,
			Message:   fmt.Sprintf("unable to reach %s", addr),
			Retryable: true,
			Cause:     err,
		}
	}

	deadline := time.Now().Add(cfg.ConnectTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, clientConfig)
	if err != nil {
		_ = conn.Close()
		return nil, classifyHandshakeError(addr, err, verifier)
	}
	_ = conn.SetDeadline(time.Time{})

	if verifier.recorded {
		LogConnectionEvent(ctx, "host_key_recorded", map[string]any{
			"host":             addr,
			"known_hosts_file": verifier.path,
		})
	}

	return &sshTransport{client: ssh.NewClient(c, chans, reqs)}, nil
}

func classifyHandshakeError(addr string, err error, verifier *hostKeyVerifier) error {
	if verifier.rejected != nil {
		return &Error{
			Operation: "connect",
			Kind:      ErrorKindHostKey,
			Message:   verifier.rejected.Error(),
			Cause:     err,
		}
	}

	if strings.Contains(err.Error(), "unable to authenticate") {
		return &Error{
			Operation: "connect",
			Kind:      ErrorKindAuth,
			Message:   fmt.Sprintf("server %s rejected the supplied credentials", addr),
			Cause:     err,
		}
	}

	return &Error{
		Operation: "connect",
		Kind:      ErrorKindNetwork,
		Message:   fmt.Sprintf("ssh handshake with %s failed", addr),
		Retryable: true,
		Cause:     err,
	}
}

// defaultIdentityFiles are tried, in order, from ~/.ssh when no credential is configured.
var defaultIdentityFiles = []string{"id_ed25519", "id_ecdsa", "id_rsa"}

// authMethods builds the client auth methods. The returned func releases any
// agent connection and must be called once the handshake is over.
func authMethods(cfg *SessionConfig) ([]ssh.AuthMethod, func(), error) {
	var methods []ssh.AuthMethod

	keyPEM := cfg.PrivateKey
	if len(keyPEM) == 0 && cfg.PrivateKeyFile != "" {
		data, err := os.ReadFile(cfg.PrivateKeyFile)
		if err != nil {
			return nil, nil, NewError("connect", ErrorKindAuth, fmt.Sprintf("unable to read private key %s", cfg.PrivateKeyFile), err)
		}
		keyPEM = data
	}

	if len(keyPEM) > 0 {
		var (
			signer ssh.Signer
			err    error
		)
		if cfg.PrivateKeyPassphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(keyPEM, []byte(cfg.PrivateKeyPassphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(keyPEM)
		}
		if err != nil {
			return nil, nil, NewError("connect", ErrorKindAuth, "unable to parse private key", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}

	if cfg.Password != "" {
		password := cfg.Password
		methods = append(methods,
			ssh.Password(password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		)
	}

	if len(methods) > 0 {
		return methods, func() {}, nil
	}
	return ambientAuthMethods()
}

// ambientAuthMethods offers the keys held by the SSH agent at SSH_AUTH_SOCK
// followed by any unencrypted default identity file. The client tries only
// one publickey method, so all signers share a single callback.
func ambientAuthMethods() ([]ssh.AuthMethod, func(), error) {
	var (
		agentClient agent.ExtendedAgent
		release     = func() {}
	)
	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		if conn, err := net.Dial("unix", sock); err == nil {
			agentClient = agent.NewClient(conn)
			release = func() { _ = conn.Close() }
		}
	}

	var fileSigners []ssh.Signer
	if home, err := os.UserHomeDir(); err == nil {
		for _, name := range defaultIdentityFiles {
			data, err := os.ReadFile(filepath.Join(home, ".ssh", name))
			if err != nil {
				continue
			}
			if signer, err := ssh.ParsePrivateKey(data); err == nil {
				fileSigners = append(fileSigners, signer)
			}
		}
	}

	if agentClient == nil && len(fileSigners) == 0 {
		release()
		return nil, nil, NewError("connect", ErrorKindAuth,
			"no password or private key configured and no SSH agent or default identity file available", nil)
	}

	signers := func() ([]ssh.Signer, error) {
		var out []ssh.Signer
		if agentClient != nil {
			if held, err := agentClient.Signers(); err == nil {
				out = append(out, held...)
			}
		}
		return append(out, fileSigners...), nil
	}

	return []ssh.AuthMethod{ssh.PublicKeysCallback(signers)}, release, nil
}

// hostKeyVerifier checks server keys against a known_hosts file.
type hostKeyVerifier struct {
	path     string
	policy   HostKeyPolicy
	rejected error
	recorded bool
}

func newHostKeyVerifier(cfg *SessionConfig) (*hostKeyVerifier, error) {
	path := cfg.KnownHostsFile
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, NewError("connect", ErrorKindHostKey, "unable to locate known_hosts file", err)
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}
	return &hostKeyVerifier{path: path, policy: cfg.HostKeyPolicy}, nil
}

func (v *hostKeyVerifier) check(hostname string, remote net.Addr, key ssh.PublicKey) error {
	if _, err := os.Stat(v.path); errors.Is(err, os.ErrNotExist) {
		if v.policy != HostKeyPolicyAcceptNew {
			v.rejected = fmt.Errorf("known_hosts file %s does not exist and host key policy is %s", v.path, v.policy)
			return v.rejected
		}
		if err := os.MkdirAll(filepath.Dir(v.path), 0o700); err != nil {
			return err
		}
		if err := os.WriteFile(v.path, nil, 0o600); err != nil {
			return err
		}
	}

	callback, err := knownhosts.New(v.path)
	if err != nil {
		v.rejected = fmt.Errorf("unable to load known_hosts file %s: %w", v.path, err)
		return v.rejected
	}

	err = callback(hostname, remote, key)
	if err == nil {
		return nil
	}

	var keyErr *knownhosts.KeyError
	if errors.As(err, &keyErr) {
		if len(keyErr.Want) > 0 {
			v.rejected = fmt.Errorf("host key for %s does not match the key recorded in %s (%s)",
				hostname, v.path, ssh.FingerprintSHA256(key))
			return v.rejected
		}
		if v.policy == HostKeyPolicyAcceptNew {
			return v.record(hostname, key)
		}
		v.rejected = fmt.Errorf("host %s is not in %s (%s %s)",
			hostname, v.path, key.Type(), ssh.FingerprintSHA256(key))
		return v.rejected
	}

	var revoked *knownhosts.RevokedError
	if errors.As(err, &revoked) {
		v.rejected = fmt.Errorf("host key for %s has been revoked", hostname)
		return v.rejected
	}

	v.rejected = err
	return err
}

func (v *hostKeyVerifier) record(hostname string, key ssh.PublicKey) error {
	f, err := os.OpenFile(v.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	line := knownhosts.Line([]string{knownhosts.Normalize(hostname)}, key)
	if _, err := fmt.Fprintln(f, line); err != nil {
		return err
	}
	v.recorded = true
	return nil
}

// sshTransport runs each command on its own channel of a shared client connection.
type sshTransport struct {
	client *ssh.Client
}

func (t *sshTransport) Exec(ctx context.Context, command string) (string, string, int, error) {
	sess, err := t.client.NewSession()
	if err != nil {
		return "", "", -1, err
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	if err := sess.Start(command); err != nil {
		return "", "", -1, err
	}

	done := make(chan error, 1)
	go func() {
		done <- sess.Wait()
	}()

	select {
	case <-ctx.Done():
		_ = sess.Signal(ssh.SIGKILL)
		_ = sess.Close()
		<-done
		return stdout.String(), stderr.String(), -1, ctx.Err()
	case err := <-done:
		if err == nil {
			return stdout.String(), stderr.String(), 0, nil
		}
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return stdout.String(), stderr.String(), exitErr.ExitStatus(), nil
		}
		return stdout.String(), stderr.String(), -1, err
	}
}

func (t *sshTransport) Ping(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		_, _, err := t.client.SendRequest("keepalive@openssh.com", true, nil)
		errc <- err
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *sshTransport) Close() error {
	return t.client.Close()
}
