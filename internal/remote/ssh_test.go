package remote

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rileyhilliard/sitepush/internal/config"
	"github.com/rileyhilliard/sitepush/internal/errors"
	"github.com/rileyhilliard/sitepush/internal/logger"
	"github.com/rileyhilliard/sitepush/pkg/sshutil"
	sshtesting "github.com/rileyhilliard/sitepush/pkg/sshutil/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dialRecorder struct {
	calls  int
	opts   []sshutil.DialOptions
	client *sshtesting.MockClient
	err    error
}

func target(timeout time.Duration, strict bool) *config.DeployConfig {
	return &config.DeployConfig{SSHHost: "deploy@web1", SSHTimeout: timeout, StrictHostKey: strict}
}

func (d *dialRecorder) dial(host string, opts sshutil.DialOptions) (sshutil.SSHClient, error) {
	d.calls++
	d.opts = append(d.opts, opts)
	if d.err != nil {
		return nil, d.err
	}
	return d.client, nil
}

func TestSSH_DialsLazily(t *testing.T) {
	rec := &dialRecorder{client: sshtesting.NewMockClient("deploy@web1")}
	r := NewSSH(target(10*time.Second, true), nil).WithDialer(rec.dial)

	assert.Equal(t, 0, rec.calls)
	require.NoError(t, r.Close(), "closing an unopened connection is a no-op")
	assert.Equal(t, 0, rec.calls)
}

func TestSSH_ReusesConnection(t *testing.T) {
	mock := sshtesting.NewMockClient("deploy@web1")
	rec := &dialRecorder{client: mock}
	r := NewSSH(target(7*time.Second, false), nil).WithDialer(rec.dial)

	for _, cmd := range []string{"mkdir -p '/var/www/site'", "sudo -n chown -R 'www-data:www-data' '/var/www/site'"} {
		code, err := r.Exec(context.Background(), cmd, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, code)
	}

	assert.Equal(t, 1, rec.calls)
	assert.Equal(t, 7*time.Second, rec.opts[0].Timeout)
	assert.False(t, rec.opts[0].StrictHostKey)
	assert.Len(t, mock.Commands(), 2)

	require.NoError(t, r.Close())
	assert.True(t, mock.Closed())
}

func TestSSH_ExitCodeAndOutput(t *testing.T) {
	mock := sshtesting.NewMockClient("deploy@web1")
	mock.SetCommandResponse(`^cd `, sshtesting.CommandResponse{
		Stdout:   []byte("Running migrations\n"),
		Stderr:   []byte("table exists\n"),
		ExitCode: 4,
	})
	rec := &dialRecorder{client: mock}
	r := NewSSH(target(time.Second, true), nil).WithDialer(rec.dial)

	var stdout, stderr bytes.Buffer
	code, err := r.Exec(context.Background(), "cd '/var/www/site' && php artisan migrate", &stdout, &stderr)

	require.NoError(t, err)
	assert.Equal(t, 4, code)
	assert.Equal(t, "Running migrations\n", stdout.String())
	assert.Equal(t, "table exists\n", stderr.String())
}

func TestSSH_DialError(t *testing.T) {
	dialErr := errors.New(errors.ErrSSH, "Can't reach 'deploy@web1'", "")
	rec := &dialRecorder{err: dialErr}
	log := logger.NewBufferLogger()
	r := NewSSH(target(time.Second, true), log).WithDialer(rec.dial)

	code, err := r.Exec(context.Background(), "true", nil, nil)

	assert.Equal(t, -1, code)
	assert.Equal(t, dialErr, err)
	assert.True(t, log.HasLevel("debug"))

	// A failed dial is retried on the next command
	_, _ = r.Exec(context.Background(), "true", nil, nil)
	assert.Equal(t, 2, rec.calls)
}

func TestSSH_Host(t *testing.T) {
	assert.Equal(t, "deploy@web1", NewSSH(target(time.Second, true), nil).Host())
}

func TestSSH_ConfigWarningsGoToLog(t *testing.T) {
	rec := &dialRecorder{client: sshtesting.NewMockClient("deploy@web1")}
	log := logger.NewBufferLogger()
	r := NewSSH(target(time.Second, true), log).WithDialer(rec.dial)

	_, err := r.Exec(context.Background(), "true", nil, nil)
	require.NoError(t, err)
	require.NotNil(t, rec.opts[0].Warn)

	rec.opts[0].Warn("no ~/.ssh/config entry for web1")
	assert.True(t, log.HasLevel("warn"))
}
