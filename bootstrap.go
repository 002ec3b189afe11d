package main

import (
	"context"
	"fmt"

	"github.com/clousec/clousec/database"
	"github.com/clousec/clousec/internal/config"
	"github.com/clousec/clousec/internal/dashboard"
	"github.com/clousec/clousec/internal/lifecycle"
	"github.com/clousec/clousec/internal/provider/awsprovider"
	"github.com/clousec/clousec/internal/scanner"
	"github.com/clousec/clousec/internal/severity"
	"github.com/clousec/clousec/util"
	"go.uber.org/zap"
)

// components are the long-lived pieces shared by serve and scan.
type components struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    database.FindingStore
	provider *awsprovider.Provider
	scanner  *scanner.Scanner
	view     *dashboard.View
}

func bootstrap(ctx context.Context) (*components, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	logger := util.InitLogger(cfg.LogLevel)
	sugar := logger.Sugar()

	policy := severity.DefaultPolicy()
	if cfg.PolicyFile != "" {
		policy, err = severity.LoadPolicy(cfg.PolicyFile)
		if err != nil {
			return nil, fmt.Errorf("loading severity policy: %w", err)
		}
		sugar.Infof("Loaded severity policy from %s", cfg.PolicyFile)
	}

	store, err := database.Open(ctx, database.Options{
		URI:      cfg.StoreURI,
		Database: cfg.Database,
		User:     cfg.ArangoUser,
		Password: cfg.ArangoPass,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening findings store: %w", err)
	}

	provider, err := awsprovider.New(ctx, cfg.AWSRegion, logger)
	if err != nil {
		_ = store.Close(ctx)
		return nil, err
	}
	sugar.Infof("Using AWS default region %s", provider.DefaultRegion())

	reconciler := lifecycle.NewReconciler(store, logger)
	sc := scanner.New(scanner.Inspectors{
		Buckets:        provider,
		SecurityGroups: provider,
		Instances:      provider,
		Principals:     provider,
		Regions:        provider,
	}, severity.NewClassifier(policy), reconciler, logger, scanner.Config{
		Workers:         cfg.ScanWorkers,
		ResourceTimeout: cfg.ResourceTimeout,
		AllowedRegions:  cfg.AllowedRegions,
	})

	return &components{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		provider: provider,
		scanner:  sc,
		view:     dashboard.NewView(store),
	}, nil
}

func (c *components) close(ctx context.Context) {
	if err := c.store.Close(ctx); err != nil {
		c.logger.Warn("Failed to close findings store", zap.Error(err))
	}
	_ = c.logger.Sync()
}
