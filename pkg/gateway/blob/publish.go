package blob

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	publishMaxAttempts = 5
	publishBackoffMin  = 10 * time.Second
	publishBackoffMax  = 60 * time.Second
)

// Publisher retries uploads on TLS handshake and verification faults. Any
// other failure is returned immediately: application errors do not become
// less wrong by waiting.
type Publisher struct {
	uploader Uploader
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

type PublisherOption func(*Publisher)

// WithSleep overrides the backoff sleep. Used in tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) PublisherOption {
	return func(p *Publisher) { p.sleep = sleep }
}

func NewPublisher(uploader Uploader, logger *slog.Logger, opts ...PublisherOption) (*Publisher, error) {
	if uploader == nil {
		return nil, fmt.Errorf("uploader is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Publisher{uploader: uploader, logger: logger, sleep: sleepCtx}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Publish uploads the object, retrying only TLS-classified faults. The final
// attempt's error is returned unmodified so callers can classify it.
func (p *Publisher) Publish(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	backoff := publishBackoffMin
	for attempt := 1; ; attempt++ {
		locator, err := p.uploader.Upload(ctx, key, data, contentType)
		if err == nil {
			return locator, nil
		}
		if !IsTLSError(err) || attempt == publishMaxAttempts {
			return "", err
		}

		p.logger.WarnContext(ctx, "upload hit TLS fault, retrying",
			"key", key, "attempt", attempt, "backoff", backoff, "error", err)
		if sleepErr := p.sleep(ctx, backoff); sleepErr != nil {
			return "", err
		}
		backoff *= 2
		if backoff > publishBackoffMax {
			backoff = publishBackoffMax
		}
	}
}

// IsTLSError reports whether the error, anywhere in its wrapped chain, is a
// TLS handshake or certificate verification failure.
func IsTLSError(err error) bool {
	var (
		recordHeader tls.RecordHeaderError
		certVerify   *tls.CertificateVerificationError
		unknownCA    x509.UnknownAuthorityError
		certInvalid  x509.CertificateInvalidError
		hostname     x509.HostnameError
		systemRoots  x509.SystemRootsError
	)
	switch {
	case errors.As(err, &recordHeader),
		errors.As(err, &certVerify),
		errors.As(err, &unknownCA),
		errors.As(err, &certInvalid),
		errors.As(err, &hostname),
		errors.As(err, &systemRoots):
		return true
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
