package samba

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockTransport struct {
	mock.Mock
}

func (m *mockTransport) Exec(ctx context.Context, command string) (string, string, int, error) {
	args := m.Called(ctx, command)
	return args.String(0), args.String(1), args.Int(2), args.Error(3)
}

func (m *mockTransport) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockTransport) Close() error {
	return m.Called().Error(0)
}

func newMockSession(t *testing.T) (*mockTransport, *Session) {
	t.Helper()
	m := &mockTransport{}
	m.On("Close").Return(nil).Maybe()
	s := NewSession(m, &SessionConfig{Host: "dc1", Username: "root"})
	t.Cleanup(func() { _ = s.Close() })
	return m, s
}

func TestExecutor_CommandLine(t *testing.T) {
	tests := []struct {
		name string
		cfg  ExecutorConfig
		args []string
		want string
	}{
		{
			name: "plain arguments",
			args: []string{"user", "list"},
			want: "samba-tool user list",
		},
		{
			name: "empty option value",
			args: []string{"group", "add", "--description=", "--", "x"},
			want: "samba-tool group add --description= -- x",
		},
		{
			name: "sudo and custom path",
			cfg:  ExecutorConfig{ToolPath: "/usr/local/samba/bin/samba-tool", UseSudo: true},
			args: []string{"domain", "info", "dc1.samdom.example.com"},
			want: "sudo -n /usr/local/samba/bin/samba-tool domain info dc1.samdom.example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewExecutor(tt.cfg).CommandLine(tt.args))
		})
	}
}

func TestExecutor_CommandLineQuoting(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "spaces", args: []string{"group", "addmembers", "--", "Remote Desktop Users", "alice"}},
		{name: "single quote", args: []string{"user", "add", "--", "obrien", "o'brien's pw"}},
		{name: "command substitution", args: []string{"user", "setpassword", "--newpassword=P@ss;$(rm -rf /)", "--", "alice"}},
		{name: "backticks and globs", args: []string{"user", "add", "--", "bob", "`id` *?[x] ~me"}},
		{name: "empty argument", args: []string{"group", "add", "--", ""}},
		{name: "leading hash", args: []string{"user", "add", "--given-name=#1", "--", "dave", "#not-a-comment"}},
		{name: "tab and newline", args: []string{"user", "add", "--", "carol", "a\tb\nc"}},
	}

	e := NewExecutor(ExecutorConfig{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := e.CommandLine(tt.args)
			got, err := shellquote.Split(line)
			require.NoError(t, err)
			assert.Equal(t, append([]string{DefaultToolPath}, tt.args...), got)
			assert.NotContains(t, line, " #")
		})
	}
}

func TestCommandRequest_Redacted(t *testing.T) {
	req := CommandRequest{
		Args:      []string{"user", "add", "alice", "S3cret!pw", "--given-name=Alice", "--newpassword=other"},
		Sensitive: []int{3, 5, 42},
	}

	assert.Equal(t,
		[]string{"user", "add", "alice", "[REDACTED]", "--given-name=Alice", "--newpassword=[REDACTED]"},
		req.Redacted())
	assert.Equal(t, "S3cret!pw", req.Args[3])
}

func TestExecutor_Run(t *testing.T) {
	m, s := newMockSession(t)
	m.On("Exec", mock.Anything, "samba-tool user list").
		Return("alice\nbob\n", "", 0, nil).Once()

	res, err := NewExecutor(ExecutorConfig{}).Run(context.Background(), s, CommandRequest{Args: []string{"user", "list"}})
	require.NoError(t, err)

	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "alice\nbob\n", res.Stdout)
	assert.True(t, res.Succeeded())
	m.AssertExpectations(t)
}

func TestExecutor_Run_NonZeroExitIsNotAnError(t *testing.T) {
	m, s := newMockSession(t)
	m.On("Exec", mock.Anything, mock.Anything).
		Return("", "ERROR: Unable to find user \"bob\"\n", 255, nil).Once()

	res, err := NewExecutor(ExecutorConfig{}).Run(context.Background(), s, CommandRequest{Args: []string{"user", "show", "bob"}})
	require.NoError(t, err)
	assert.Equal(t, 255, res.ExitCode)
	assert.False(t, res.Succeeded())
	assert.True(t, s.alive.Load())
}

func TestExecutor_Run_Timeout(t *testing.T) {
	m, s := newMockSession(t)
	m.On("Exec", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return("", "", -1, context.DeadlineExceeded).Once()

	_, err := NewExecutor(ExecutorConfig{}).Run(context.Background(), s, CommandRequest{
		Args:    []string{"user", "list"},
		Timeout: 20 * time.Millisecond,
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.True(t, IsRetryableError(err))
	assert.True(t, s.alive.Load(), "a timed out command leaves the session usable")
}

func TestExecutor_Run_Cancelled(t *testing.T) {
	m, s := newMockSession(t)
	ctx, cancel := context.WithCancel(context.Background())

	m.On("Exec", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			cancel()
			<-args.Get(0).(context.Context).Done()
		}).
		Return("", "", -1, context.Canceled).Once()

	_, err := NewExecutor(ExecutorConfig{}).Run(ctx, s, CommandRequest{Args: []string{"user", "list"}})

	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecutor_Run_TransportFailureKillsSession(t *testing.T) {
	m, s := newMockSession(t)
	m.On("Exec", mock.Anything, mock.Anything).
		Return("", "", -1, io.EOF).Once()

	exec := NewExecutor(ExecutorConfig{})
	_, err := exec.Run(context.Background(), s, CommandRequest{Args: []string{"user", "list"}})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionDead)
	assert.ErrorIs(t, err, io.EOF)
	assert.False(t, s.alive.Load())
	assert.ErrorIs(t, s.Err(), io.EOF)

	// No further command reaches the transport.
	_, err = exec.Run(context.Background(), s, CommandRequest{Args: []string{"user", "list"}})
	assert.ErrorIs(t, err, ErrSessionDead)
	m.AssertNumberOfCalls(t, "Exec", 1)
}

func TestExecutor_Run_RefusesClosedSession(t *testing.T) {
	m, s := newMockSession(t)
	require.NoError(t, s.Close())

	_, err := NewExecutor(ExecutorConfig{}).Run(context.Background(), s, CommandRequest{Args: []string{"user", "list"}})
	assert.ErrorIs(t, err, ErrSessionDead)
	m.AssertNotCalled(t, "Exec", mock.Anything, mock.Anything)

	_, err = NewExecutor(ExecutorConfig{}).Run(context.Background(), nil, CommandRequest{Args: []string{"user", "list"}})
	assert.ErrorIs(t, err, ErrSessionDead)
}

func TestExecutor_Run_CancelledWhileQueued(t *testing.T) {
	m, s := newMockSession(t)
	release := make(chan struct{})
	started := make(chan struct{})

	m.On("Exec", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return("", "", 0, nil).Once()

	exec := NewExecutor(ExecutorConfig{})
	done := make(chan error, 1)
	go func() {
		_, err := exec.Run(context.Background(), s, CommandRequest{Args: []string{"user", "list"}})
		done <- err
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := exec.Run(ctx, s, CommandRequest{Args: []string{"group", "list"}})
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	assert.NoError(t, <-done)
	m.AssertNumberOfCalls(t, "Exec", 1)
}

// gaugeTransport records how many commands run at once.
type gaugeTransport struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (g *gaugeTransport) Exec(ctx context.Context, command string) (string, string, int, error) {
	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(g.delay)
	return command + "\n", "", 0, nil
}

func (g *gaugeTransport) Ping(context.Context) error { return nil }
func (g *gaugeTransport) Close() error               { return nil }

func TestExecutor_Run_SerializesPerSession(t *testing.T) {
	shared := &gaugeTransport{delay: 5 * time.Millisecond}
	s := NewSession(shared, nil)
	defer s.Close()

	exec := NewExecutor(ExecutorConfig{})
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := exec.Run(context.Background(), s, CommandRequest{Args: []string{"user", "list"}})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), shared.peak.Load())
}

func TestExecutor_Run_ParallelAcrossSessions(t *testing.T) {
	start := make(chan struct{})
	var arrived sync.WaitGroup
	arrived.Add(2)

	// Each command waits until both sessions are running one.
	barrier := func() *mockTransport {
		m := &mockTransport{}
		m.On("Close").Return(nil)
		m.On("Exec", mock.Anything, mock.Anything).
			Run(func(mock.Arguments) {
				arrived.Done()
				<-start
			}).
			Return("", "", 0, nil).Once()
		return m
	}

	s1 := NewSession(barrier(), nil)
	s2 := NewSession(barrier(), nil)
	defer s1.Close()
	defer s2.Close()

	exec := NewExecutor(ExecutorConfig{})
	errs := make(chan error, 2)
	for _, s := range []*Session{s1, s2} {
		go func() {
			_, err := exec.Run(context.Background(), s, CommandRequest{Args: []string{"user", "list"}})
			errs <- err
		}()
	}

	waited := make(chan struct{})
	go func() {
		arrived.Wait()
		close(waited)
	}()

	select {
	case <-waited:
	case <-time.After(5 * time.Second):
		t.Fatal("commands on different sessions did not run concurrently")
	}
	close(start)

	for range 2 {
		assert.NoError(t, <-errs)
	}
}

func TestExecutor_Run_TransportErrorAfterSuccessfulPing(t *testing.T) {
	m, s := newMockSession(t)
	m.On("Ping", mock.Anything).Return(nil).Once()
	m.On("Exec", mock.Anything, mock.Anything).Return("", "", -1, errors.New("channel closed")).Once()

	require.True(t, s.IsAlive(context.Background()))

	_, err := NewExecutor(ExecutorConfig{}).Run(context.Background(), s, CommandRequest{Args: []string{"user", "list"}})
	assert.ErrorIs(t, err, ErrSessionDead)
	assert.False(t, s.IsAlive(context.Background()))
	m.AssertNumberOfCalls(t, "Ping", 1)
}
