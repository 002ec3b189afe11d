// Package lifecycle applies evaluator observations to the finding store. It is
// the only writer of finding records.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/clousec/clousec/database"
	"github.com/clousec/clousec/internal/metrics"
	"github.com/clousec/clousec/model"
	"github.com/clousec/clousec/util"
	"go.uber.org/zap"
)

// Transition is what an observation did to its finding.
type Transition string

const (
	Opened    Transition = "opened"
	Refreshed Transition = "refreshed"
	Reopened  Transition = "reopened"
	Resolved  Transition = "resolved"
	Unchanged Transition = "unchanged"
)

const (
	defaultRetryWindow = 30 * time.Second
	retryInitial       = 100 * time.Millisecond
	retryMax           = 2 * time.Second
)

// Reconciler turns observations into atomic store writes.
type Reconciler struct {
	store       database.FindingStore
	logger      *zap.Logger
	now         func() time.Time
	retryWindow time.Duration
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// WithRetryWindow bounds the total time spent retrying one store write.
func WithRetryWindow(d time.Duration) Option {
	return func(r *Reconciler) { r.retryWindow = d }
}

// NewReconciler returns a reconciler writing to store.
func NewReconciler(store database.FindingStore, logger *zap.Logger, opts ...Option) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reconciler{
		store:       store,
		logger:      logger,
		now:         time.Now,
		retryWindow: defaultRetryWindow,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Apply reconciles one observation. Present observations upsert; absent ones
// resolve an OPEN finding and are a no-op otherwise.
func (r *Reconciler) Apply(ctx context.Context, obs model.Observation) (Transition, error) {
	fingerprint := util.Fingerprint(obs.Service, obs.ResourceID, obs.Issue, obs.Region)
	now := r.now().UTC()

	var (
		transition Transition
		err        error
	)
	if obs.Present {
		transition, err = r.open(ctx, fingerprint, obs, now)
	} else {
		transition, err = r.resolve(ctx, fingerprint, now)
	}

	if err != nil {
		metrics.RecordReconcileError(obs.Service)
		r.logger.Error("Failed to reconcile finding",
			zap.String("fingerprint", fingerprint),
			zap.String("resource_id", obs.ResourceID),
			zap.String("issue", obs.Issue),
			zap.Error(err))
		return Unchanged, err
	}

	metrics.RecordTransition(obs.Service, string(transition))
	if transition != Unchanged {
		r.logger.Info("Finding "+string(transition),
			zap.String("fingerprint", fingerprint),
			zap.String("service", obs.Service),
			zap.String("resource_id", obs.ResourceID),
			zap.String("issue", obs.Issue),
			zap.String("region", obs.Region),
			zap.String("severity", string(obs.Severity)))
	}
	return transition, nil
}

// ApplyAll reconciles every observation, continuing past failures, and returns
// the joined errors.
func (r *Reconciler) ApplyAll(ctx context.Context, observations []model.Observation) error {
	var errs []error
	for _, obs := range observations {
		if _, err := r.Apply(ctx, obs); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Reconciler) open(ctx context.Context, fingerprint string, obs model.Observation, now time.Time) (Transition, error) {
	if !obs.Severity.Valid() {
		return Unchanged, fmt.Errorf("invalid severity %q for %s", obs.Severity, fingerprint)
	}

	finding := model.Finding{
		Fingerprint: fingerprint,
		Service:     obs.Service,
		ResourceID:  obs.ResourceID,
		Issue:       obs.Issue,
		Region:      obs.Region,
		Severity:    obs.Severity,
		Status:      model.StatusOpen,
		FirstSeen:   now,
		LastSeen:    now,
	}

	var prior model.FindingStatus
	err := r.retry(ctx, "upsert", fingerprint, func() error {
		var err error
		prior, err = r.store.Upsert(ctx, finding)
		return err
	})
	if err != nil {
		return Unchanged, err
	}

	switch prior {
	case "":
		return Opened, nil
	case model.StatusResolved:
		return Reopened, nil
	default:
		return Refreshed, nil
	}
}

func (r *Reconciler) resolve(ctx context.Context, fingerprint string, now time.Time) (Transition, error) {
	var resolved bool
	err := r.retry(ctx, "resolve", fingerprint, func() error {
		var err error
		resolved, err = r.store.Resolve(ctx, fingerprint, now)
		return err
	})
	if err != nil {
		return Unchanged, err
	}
	if resolved {
		return Resolved, nil
	}
	return Unchanged, nil
}

// retry runs op with bounded exponential backoff. A concurrent insert of the
// same fingerprint surfaces as a duplicate key error and succeeds as an update
// on the next attempt.
func (r *Reconciler) retry(ctx context.Context, op string, fingerprint string, fn func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retryInitial
	bo.MaxInterval = retryMax
	bo.MaxElapsedTime = r.retryWindow

	err := backoff.RetryNotify(fn, backoff.WithContext(bo, ctx), func(err error, wait time.Duration) {
		r.logger.Warn("Retrying finding "+op,
			zap.String("fingerprint", fingerprint),
			zap.Duration("wait", wait),
			zap.Error(err))
	})
	if err != nil {
		return fmt.Errorf("finding %s %s: %w", op, fingerprint, err)
	}
	return nil
}
