package ftp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakewx/nwp-blend/internal/config"
	"github.com/lakewx/nwp-blend/internal/domain"
	"github.com/lakewx/nwp-blend/internal/observability"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeConn struct {
	user     string
	password string
	loginErr error
	storErr  error
	stored   map[string][]byte
	quit     bool
}

func (c *fakeConn) Login(user, password string) error {
	c.user, c.password = user, password
	return c.loginErr
}

func (c *fakeConn) Stor(p string, r io.Reader) error {
	if c.storErr != nil {
		return c.storErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if c.stored == nil {
		c.stored = map[string][]byte{}
	}
	c.stored[p] = data
	return nil
}

func (c *fakeConn) Quit() error {
	c.quit = true
	return nil
}

func newTestUploader(dial dialFunc) *Uploader {
	return &Uploader{
		host:        "ftp.example.com:21",
		user:        "publisher",
		password:    "secret",
		maxAttempts: 3,
		retryDelay:  time.Millisecond,
		dial:        dial,
		breaker:     gobreaker.NewCircuitBreaker(gobreaker.Settings{Name: "test"}),
		logger:      testLogger(),
		metrics:     observability.NewMetricsForTesting(),
	}
}

func TestUpload_Success(t *testing.T) {
	conn := &fakeConn{}
	u := newTestUploader(func(ctx context.Context) (serverConn, error) {
		return conn, nil
	})

	err := u.Upload(context.Background(), "zurich-2026012409-t_2m.json", []byte(`{"site":"zurich"}`))
	require.NoError(t, err)

	assert.Equal(t, "publisher", conn.user)
	assert.Equal(t, "secret", conn.password)
	assert.Equal(t, []byte(`{"site":"zurich"}`), conn.stored["zurich-2026012409-t_2m.json"])
	assert.True(t, conn.quit)
}

func TestUpload_RemoteDirPrefix(t *testing.T) {
	conn := &fakeConn{}
	u := newTestUploader(func(ctx context.Context) (serverConn, error) {
		return conn, nil
	})
	u.remoteDir = "forecasts"

	err := u.Upload(context.Background(), "basel-2026012409-vmax_10m.json", []byte("{}"))
	require.NoError(t, err)

	_, ok := conn.stored["forecasts/basel-2026012409-vmax_10m.json"]
	assert.True(t, ok, "artifact should land under the remote directory")
}

func TestUpload_RetriesThenSucceeds(t *testing.T) {
	dialErr := errors.New("connection refused")
	conn := &fakeConn{}
	dials := 0
	u := newTestUploader(func(ctx context.Context) (serverConn, error) {
		dials++
		if dials < 3 {
			return nil, dialErr
		}
		return conn, nil
	})

	err := u.Upload(context.Background(), "bern-2026012409-t_2m.json", []byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, 3, dials)
	assert.Len(t, conn.stored, 1)
}

func TestUpload_ExhaustsAttempts(t *testing.T) {
	storErr := errors.New("552 exceeded storage allocation")
	u := newTestUploader(func(ctx context.Context) (serverConn, error) {
		return &fakeConn{storErr: storErr}, nil
	})

	err := u.Upload(context.Background(), "bern-2026012409-t_2m.json", []byte("{}"))
	require.Error(t, err)

	var transErr *domain.RemoteTransmissionError
	require.ErrorAs(t, err, &transErr)
	assert.Equal(t, "bern-2026012409-t_2m.json", transErr.Name)
	assert.Equal(t, 3, transErr.Attempts)
	assert.ErrorIs(t, err, storErr)
}

func TestUpload_LoginFailure(t *testing.T) {
	u := newTestUploader(func(ctx context.Context) (serverConn, error) {
		return &fakeConn{loginErr: errors.New("530 not logged in")}, nil
	})

	err := u.Upload(context.Background(), "bern-2026012409-t_2m.json", []byte("{}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "login as publisher")
}

func TestUpload_ContextCanceledDuringBackoff(t *testing.T) {
	dialErr := errors.New("connection refused")
	u := newTestUploader(func(ctx context.Context) (serverConn, error) {
		return nil, dialErr
	})
	u.retryDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := u.Upload(ctx, "bern-2026012409-t_2m.json", []byte("{}"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	var transErr *domain.RemoteTransmissionError
	require.ErrorAs(t, err, &transErr)
	assert.Equal(t, 1, transErr.Attempts, "first attempt runs before the backoff wait")
}

func TestUpload_BreakerShortCircuits(t *testing.T) {
	dialErr := errors.New("connection refused")
	dials := 0
	u := newTestUploader(func(ctx context.Context) (serverConn, error) {
		dials++
		return nil, dialErr
	})
	u.maxAttempts = 1
	u.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "test",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 2
		},
	})

	ctx := context.Background()
	require.Error(t, u.Upload(ctx, "a.json", []byte("{}")))
	require.Error(t, u.Upload(ctx, "b.json", []byte("{}")))
	dialsBefore := dials

	err := u.Upload(ctx, "c.json", []byte("{}"))
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, dialsBefore, dials, "open breaker must not reach the server")

	var transErr *domain.RemoteTransmissionError
	require.ErrorAs(t, err, &transErr)
	assert.Equal(t, 0, transErr.Attempts)
}

func TestNewUploader_ConfigWiring(t *testing.T) {
	cfg := &config.Config{
		FTP: config.FTPConfig{
			Host:               "upload.example.com:2121",
			User:               "nwp",
			Password:           "hunter2",
			RemoteDir:          "incoming",
			DialTimeoutSeconds: 10,
			MaxAttempts:        4,
			RetryDelaySeconds:  2,
		},
	}

	u := NewUploader(cfg, testLogger(), observability.NewMetricsForTesting())

	assert.Equal(t, "upload.example.com:2121", u.host)
	assert.Equal(t, "nwp", u.user)
	assert.Equal(t, "hunter2", u.password)
	assert.Equal(t, "incoming", u.remoteDir)
	assert.Equal(t, 4, u.maxAttempts)
	assert.Equal(t, 2*time.Second, u.retryDelay)
	assert.NotNil(t, u.dial)
	assert.NotNil(t, u.breaker)
}
