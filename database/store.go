// Package database - Handles persistence of findings
package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clousec/clousec/database/memstore"
	"github.com/clousec/clousec/database/mongostore"
	"github.com/clousec/clousec/model"
	"go.uber.org/zap"
)

// ErrUnsupportedStore is returned by Open for a URI scheme with no backend.
var ErrUnsupportedStore = errors.New("unsupported findings store")

// FindingStore is the repository the reconciler and the read paths depend on.
// Upsert and Resolve are each a single atomic conditional write keyed by the
// finding fingerprint.
type FindingStore interface {
	// Upsert creates the finding as OPEN, or refreshes last_seen and severity and
	// forces status OPEN (clearing resolved_at) on an existing one. first_seen is
	// only ever written on creation. The returned status is the prior one, or ""
	// when the finding was created.
	Upsert(ctx context.Context, f model.Finding) (model.FindingStatus, error)
	// Resolve transitions an existing OPEN finding to RESOLVED. It never creates a
	// record and reports whether a transition happened.
	Resolve(ctx context.Context, fingerprint string, at time.Time) (bool, error)
	Find(ctx context.Context, filter model.FindingFilter) ([]model.Finding, error)
	Aggregate(ctx context.Context, sample int) (model.DashboardSummary, error)
	Close(ctx context.Context) error
}

var (
	_ FindingStore = (*ArangoStore)(nil)
	_ FindingStore = (*memstore.Store)(nil)
	_ FindingStore = (*mongostore.Store)(nil)
)

// Options selects and configures a backend.
type Options struct {
	URI      string
	Database string
	User     string
	Password string
	Logger   *zap.Logger
}

// Open connects to the backend named by the URI scheme: memory://, mongodb://,
// mongodb+srv://, http:// or https:// (ArangoDB).
func Open(ctx context.Context, opts Options) (FindingStore, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	switch {
	case opts.URI == "" || strings.HasPrefix(opts.URI, "memory://"):
		opts.Logger.Warn("Using in-memory findings store, findings are lost on restart",
			zap.String("hint", "set FINDINGS_STORE_URI to a mongodb:// or ArangoDB http(s):// endpoint"))
		return memstore.New(), nil
	case strings.HasPrefix(opts.URI, "mongodb://"), strings.HasPrefix(opts.URI, "mongodb+srv://"):
		store, err := mongostore.Open(ctx, opts.URI, opts.Database, opts.Logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case strings.HasPrefix(opts.URI, "http://"), strings.HasPrefix(opts.URI, "https://"):
		store, err := OpenArango(ctx, opts)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedStore, opts.URI)
}
