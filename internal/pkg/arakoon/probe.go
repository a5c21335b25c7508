package arakoon

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"arakoon-deploy-backend/internal/pkg/logger"
)

const (
	defaultProbeAttempts = 3
	defaultProbeDelay    = time.Second
)

// Waiter blocks until a cluster serves requests.
type Waiter interface {
	WaitForCluster(ctx context.Context, clusterID string) error
}

// ProbeObserver is told about every probe attempt.
type ProbeObserver interface {
	ProbeAttempt(clusterID string, err error)
}

// Prober sends no-ops to a cluster until one succeeds. Only ErrNoBytesRead
// is retried, at most attempts times in total, delay apart.
type Prober struct {
	clients  ClientFactory
	attempts int
	delay    time.Duration
	timer    backoff.Timer
	observer ProbeObserver
	logger   *logger.Logger
}

type ProberOption func(*Prober)

func WithProbeAttempts(n int) ProberOption {
	return func(p *Prober) {
		if n > 0 {
			p.attempts = n
		}
	}
}

func WithProbeDelay(d time.Duration) ProberOption {
	return func(p *Prober) { p.delay = d }
}

// WithProbeTimer replaces the timer used between attempts, for tests.
func WithProbeTimer(t backoff.Timer) ProberOption {
	return func(p *Prober) { p.timer = t }
}

func WithProbeObserver(o ProbeObserver) ProberOption {
	return func(p *Prober) { p.observer = o }
}

func NewProber(clients ClientFactory, logger *logger.Logger, opts ...ProberOption) *Prober {
	p := &Prober{
		clients:  clients,
		attempts: defaultProbeAttempts,
		delay:    defaultProbeDelay,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Prober) WaitForCluster(ctx context.Context, clusterID string) error {
	if err := CheckClusterID(clusterID); err != nil {
		return err
	}
	attempts := 0
	operation := func() error {
		attempts++
		err := p.nop(ctx, clusterID)
		if p.observer != nil {
			p.observer.ProbeAttempt(clusterID, err)
		}
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrNoBytesRead) {
			return err
		}
		return backoff.Permanent(err)
	}

	notify := func(err error, next time.Duration) {
		p.logger.Warnf("cluster %s not available yet (attempt %d/%d), retrying in %s: %v",
			clusterID, attempts, p.attempts, next, err)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.delay), uint64(p.attempts-1)),
		ctx,
	)

	err := backoff.RetryNotifyWithTimer(operation, policy, notify, p.timer)
	if err == nil {
		p.logger.Debugf("cluster %s answered after %d attempt(s)", clusterID, attempts)
		return nil
	}
	if errors.Is(err, ErrNoBytesRead) {
		return &ClusterUnavailableError{ClusterID: clusterID, Attempts: attempts, Err: err}
	}
	return err
}

func (p *Prober) nop(ctx context.Context, clusterID string) error {
	client, err := p.clients.GetCluster(clusterID)
	if err != nil {
		return err
	}
	return client.Nop(ctx)
}
