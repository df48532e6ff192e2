// Package ftp delivers published artifacts to the remote FTP store.
package ftp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path"
	"time"

	ftplib "github.com/jlaffaye/ftp"
	"github.com/sony/gobreaker"

	"github.com/lakewx/nwp-blend/internal/config"
	"github.com/lakewx/nwp-blend/internal/domain"
	"github.com/lakewx/nwp-blend/internal/observability"
)

// serverConn is the slice of *ftp.ServerConn the uploader needs; tests
// substitute a fake.
type serverConn interface {
	Login(user, password string) error
	Stor(path string, r io.Reader) error
	Quit() error
}

type dialFunc func(ctx context.Context) (serverConn, error)

// Uploader sends artifacts to the FTP server with bounded retries and a
// circuit breaker shared across the batch, so a dead server fails the
// remaining items fast instead of burning the full retry budget each time.
type Uploader struct {
	host        string
	user        string
	password    string
	remoteDir   string
	maxAttempts int
	retryDelay  time.Duration
	dial        dialFunc
	breaker     *gobreaker.CircuitBreaker
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// NewUploader creates an uploader from the FTP section of the config.
func NewUploader(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Uploader {
	u := &Uploader{
		host:        cfg.FTP.Host,
		user:        cfg.FTP.User,
		password:    cfg.FTP.Password,
		remoteDir:   cfg.FTP.RemoteDir,
		maxAttempts: cfg.FTP.MaxAttempts,
		retryDelay:  cfg.FTP.RetryDelay(),
		logger:      logger,
		metrics:     metrics,
	}

	dialTimeout := cfg.FTP.DialTimeout()
	u.dial = func(ctx context.Context) (serverConn, error) {
		c, err := ftplib.Dial(u.host, ftplib.DialWithContext(ctx), ftplib.DialWithTimeout(dialTimeout))
		if err != nil {
			return nil, err
		}
		return c, nil
	}

	u.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ftp-upload",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return u
}

// Upload transmits one artifact. Transient failures are retried with
// exponential backoff; after the retry budget is spent, or when the circuit
// breaker refuses the call, it returns a domain.RemoteTransmissionError
// wrapping the last underlying error.
func (u *Uploader) Upload(ctx context.Context, name string, data []byte) error {
	start := time.Now()
	defer func() {
		u.metrics.UploadDuration.Observe(time.Since(start).Seconds())
	}()

	attempts := 0
	_, err := u.breaker.Execute(func() (interface{}, error) {
		var err error
		attempts, err = u.uploadWithRetry(ctx, name, data)
		return nil, err
	})
	if err != nil {
		return &domain.RemoteTransmissionError{Name: name, Attempts: attempts, Err: err}
	}
	return nil
}

// uploadWithRetry returns how many attempts were made alongside the final
// error, so the caller can report the count truthfully.
func (u *Uploader) uploadWithRetry(ctx context.Context, name string, data []byte) (int, error) {
	var lastErr error
	for attempt := 1; attempt <= u.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := time.Duration(float64(u.retryDelay) * math.Pow(2, float64(attempt-2)))
			u.logger.Debug("retrying upload", "name", name, "attempt", attempt, "delay", delay)
			u.metrics.UploadRetries.Inc()
			select {
			case <-ctx.Done():
				return attempt - 1, ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := u.uploadOnce(ctx, name, data); err != nil {
			lastErr = err
			u.logger.Warn("upload attempt failed", "name", name, "attempt", attempt, "error", err)
			continue
		}
		return attempt, nil
	}
	return u.maxAttempts, lastErr
}

func (u *Uploader) uploadOnce(ctx context.Context, name string, data []byte) error {
	conn, err := u.dial(ctx)
	if err != nil {
		return fmt.Errorf("dial %s: %w", u.host, err)
	}
	defer func() {
		if err := conn.Quit(); err != nil {
			u.logger.Debug("ftp quit failed", "error", err)
		}
	}()

	if err := conn.Login(u.user, u.password); err != nil {
		return fmt.Errorf("login as %s: %w", u.user, err)
	}

	remote := name
	if u.remoteDir != "" {
		remote = path.Join(u.remoteDir, name)
	}
	if err := conn.Stor(remote, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("store %s: %w", remote, err)
	}
	return nil
}
