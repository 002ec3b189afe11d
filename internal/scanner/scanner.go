package scanner

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/clousec/clousec/events/modules/cloudevents"
	"github.com/clousec/clousec/internal/metrics"
	"github.com/clousec/clousec/internal/rules"
	"github.com/clousec/clousec/internal/severity"
	"github.com/clousec/clousec/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrScanInProgress is returned when a sweep is requested while one is running.
var ErrScanInProgress = errors.New("scan already in progress")

// ErrUnknownService is returned for a sweep of a service that is not scanned.
var ErrUnknownService = errors.New("unknown service")

// ObservationSink receives evaluator output; lifecycle.Reconciler implements it.
type ObservationSink interface {
	ApplyAll(ctx context.Context, observations []model.Observation) error
}

// Config tunes the worker pool.
type Config struct {
	Workers         int
	ResourceTimeout time.Duration
	AllowedRegions  []string
}

// Scanner evaluates resources and reconciles the observations.
type Scanner struct {
	inspectors Inspectors
	classifier *severity.Classifier
	sink       ObservationSink
	logger     *zap.Logger
	cfg        Config
	running    atomic.Bool
}

// New returns a scanner. Zero config values take defaults.
func New(inspectors Inspectors, classifier *severity.Classifier, sink ObservationSink, logger *zap.Logger, cfg Config) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.ResourceTimeout <= 0 {
		cfg.ResourceTimeout = 30 * time.Second
	}
	return &Scanner{
		inspectors: inspectors,
		classifier: classifier,
		sink:       sink,
		logger:     logger,
		cfg:        cfg,
	}
}

// Running reports whether a sweep is in progress.
func (s *Scanner) Running() bool {
	return s.running.Load()
}

// ScanTarget runs a targeted scan of one resource under the per-resource timeout.
// A resource that no longer exists is skipped without error.
func (s *Scanner) ScanTarget(ctx context.Context, t cloudevents.Target) error {
	region := t.Region
	if region == "" || region == model.GlobalRegion {
		region = s.inspectors.Regions.DefaultRegion()
	}

	switch t.Kind {
	case cloudevents.KindInstance:
		return s.scanResource(ctx, string(t.Kind), t.ResourceID, func(ctx context.Context) (rules.Evaluator, error) {
			return s.inspectors.Instances.DescribeInstance(ctx, region, t.ResourceID)
		})
	case cloudevents.KindSecurityGroup:
		return s.scanResource(ctx, string(t.Kind), t.ResourceID, func(ctx context.Context) (rules.Evaluator, error) {
			return s.inspectors.SecurityGroups.DescribeSecurityGroup(ctx, region, t.ResourceID)
		})
	case cloudevents.KindBucket:
		return s.scanResource(ctx, string(t.Kind), t.ResourceID, func(ctx context.Context) (rules.Evaluator, error) {
			return s.inspectors.Buckets.InspectBucket(ctx, t.ResourceID)
		})
	case cloudevents.KindRole:
		return s.scanResource(ctx, string(t.Kind), t.ResourceID, func(ctx context.Context) (rules.Evaluator, error) {
			return s.inspectors.Principals.InspectRole(ctx, t.ResourceID)
		})
	case cloudevents.KindUser:
		return s.scanResource(ctx, string(t.Kind), t.ResourceID, func(ctx context.Context) (rules.Evaluator, error) {
			return s.inspectors.Principals.InspectUser(ctx, t.ResourceID)
		})
	}
	return fmt.Errorf("unsupported target kind %q", t.Kind)
}

func (s *Scanner) scanResource(ctx context.Context, kind, id string, inspect func(context.Context) (rules.Evaluator, error)) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ResourceTimeout)
	defer cancel()

	view, err := inspect(ctx)
	if errors.Is(err, ErrResourceNotFound) {
		metrics.RecordResourceScan(kind, "not_found")
		s.logger.Debug("Resource no longer exists, skipping", zap.String("kind", kind), zap.String("resource_id", id))
		return nil
	}
	if err != nil {
		metrics.RecordResourceScan(kind, "error")
		s.logger.Warn("Failed to inspect resource", zap.String("kind", kind), zap.String("resource_id", id), zap.Error(err))
		return fmt.Errorf("inspect %s %s: %w", kind, id, err)
	}

	if err := s.sink.ApplyAll(ctx, view.Evaluate(s.classifier)); err != nil {
		metrics.RecordResourceScan(kind, "error")
		return fmt.Errorf("reconcile %s %s: %w", kind, id, err)
	}
	metrics.RecordResourceScan(kind, "ok")
	return nil
}

// ParseService normalizes a service name (s3, ec2, iam, any case).
func ParseService(name string) (string, error) {
	service := strings.ToUpper(strings.TrimSpace(name))
	switch service {
	case model.ServiceS3, model.ServiceEC2, model.ServiceIAM:
		return service, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownService, name)
}

// FullScan sweeps the given services (all when none are given) and returns
// when the sweep is done. Individual resource failures are logged and do not
// fail the sweep; only listing failures are returned.
func (s *Scanner) FullScan(ctx context.Context, services ...string) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrScanInProgress
	}
	defer s.running.Store(false)
	return s.sweep(ctx, services)
}

// StartSweep launches FullScan in the background. It fails fast with
// ErrScanInProgress so callers can report a conflict.
func (s *Scanner) StartSweep(ctx context.Context, services ...string) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrScanInProgress
	}
	go func() {
		defer s.running.Store(false)
		if err := s.sweep(ctx, services); err != nil {
			s.logger.Warn("Sweep finished with errors", zap.Error(err))
		}
	}()
	return nil
}

func (s *Scanner) sweep(ctx context.Context, services []string) error {
	if len(services) == 0 {
		services = []string{model.ServiceS3, model.ServiceEC2, model.ServiceIAM}
	}

	var errs []error
	for _, service := range services {
		start := time.Now()
		var err error
		switch service {
		case model.ServiceS3:
			err = s.sweepS3(ctx)
		case model.ServiceEC2:
			err = s.sweepEC2(ctx)
		case model.ServiceIAM:
			err = s.sweepIAM(ctx)
		default:
			err = fmt.Errorf("%w: %q", ErrUnknownService, service)
		}
		metrics.RecordSweep(service, time.Since(start))
		s.logger.Info("Sweep complete", zap.String("service", service), zap.Duration("elapsed", time.Since(start)))
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// pool runs resource scans with bounded concurrency. A failing resource never
// cancels its siblings.
type pool struct {
	group  errgroup.Group
	failed atomic.Int64
	total  atomic.Int64
}

func (s *Scanner) newPool() *pool {
	p := &pool{}
	p.group.SetLimit(s.cfg.Workers)
	return p
}

func (p *pool) Go(fn func() error) {
	p.total.Add(1)
	p.group.Go(func() error {
		if err := fn(); err != nil {
			p.failed.Add(1)
		}
		return nil
	})
}

func (p *pool) Wait() (total, failed int64) {
	_ = p.group.Wait()
	return p.total.Load(), p.failed.Load()
}

func (s *Scanner) sweepS3(ctx context.Context) error {
	names, err := s.inspectors.Buckets.ListBuckets(ctx)
	if err != nil {
		return fmt.Errorf("list buckets: %w", err)
	}

	p := s.newPool()
	for _, name := range names {
		p.Go(func() error {
			return s.ScanTarget(ctx, cloudevents.Target{Kind: cloudevents.KindBucket, Region: model.GlobalRegion, ResourceID: name})
		})
	}
	s.logPool(model.ServiceS3, p)
	return nil
}

func (s *Scanner) sweepIAM(ctx context.Context) error {
	var errs []error
	p := s.newPool()

	roles, err := s.inspectors.Principals.ListRoles(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("list roles: %w", err))
	}
	for _, name := range roles {
		p.Go(func() error {
			return s.ScanTarget(ctx, cloudevents.Target{Kind: cloudevents.KindRole, Region: model.GlobalRegion, ResourceID: name})
		})
	}

	users, err := s.inspectors.Principals.ListUsers(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("list users: %w", err))
	}
	for _, name := range users {
		p.Go(func() error {
			return s.ScanTarget(ctx, cloudevents.Target{Kind: cloudevents.KindUser, Region: model.GlobalRegion, ResourceID: name})
		})
	}

	s.logPool(model.ServiceIAM, p)
	return errors.Join(errs...)
}

func (s *Scanner) sweepEC2(ctx context.Context) error {
	var errs []error
	p := s.newPool()

	for _, region := range s.Regions(ctx) {
		groups, err := s.inspectors.SecurityGroups.ListSecurityGroupIDs(ctx, region)
		if err != nil {
			errs = append(errs, fmt.Errorf("list security groups in %s: %w", region, err))
		}
		for _, id := range groups {
			p.Go(func() error {
				return s.ScanTarget(ctx, cloudevents.Target{Kind: cloudevents.KindSecurityGroup, Region: region, ResourceID: id})
			})
		}

		instances, err := s.inspectors.Instances.ListInstanceIDs(ctx, region)
		if err != nil {
			errs = append(errs, fmt.Errorf("list instances in %s: %w", region, err))
		}
		for _, id := range instances {
			p.Go(func() error {
				return s.ScanTarget(ctx, cloudevents.Target{Kind: cloudevents.KindInstance, Region: region, ResourceID: id})
			})
		}
	}

	s.logPool(model.ServiceEC2, p)
	return errors.Join(errs...)
}

func (s *Scanner) logPool(service string, p *pool) {
	total, failed := p.Wait()
	s.logger.Info("Scanned resources",
		zap.String("service", service),
		zap.Int64("resources", total),
		zap.Int64("failed", failed))
}

// Regions returns the enabled regions filtered by the allow-list. When the
// provider cannot list regions the allow-list, or the default region, is used.
func (s *Scanner) Regions(ctx context.Context) []string {
	enabled, err := s.inspectors.Regions.Regions(ctx)
	if err != nil {
		s.logger.Warn("Failed to list regions", zap.Error(err))
		if len(s.cfg.AllowedRegions) > 0 {
			return s.cfg.AllowedRegions
		}
		return []string{s.inspectors.Regions.DefaultRegion()}
	}

	if len(s.cfg.AllowedRegions) == 0 {
		return enabled
	}

	var out []string
	for _, region := range enabled {
		if slices.Contains(s.cfg.AllowedRegions, region) {
			out = append(out, region)
		}
	}
	return out
}
