package database

import (
	"context"
	"testing"

	"github.com/clousec/clousec/database/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestOpen_Memory(t *testing.T) {
	for _, uri := range []string{"", "memory://"} {
		store, err := Open(context.Background(), Options{URI: uri})
		require.NoError(t, err)
		assert.IsType(t, &memstore.Store{}, store)
	}
}

func TestOpen_MemoryWarnsFindingsAreNotPersisted(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	_, err := Open(context.Background(), Options{Logger: zap.New(core)})
	require.NoError(t, err)

	warnings := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "in-memory findings store")
}

func TestOpen_Unsupported(t *testing.T) {
	_, err := Open(context.Background(), Options{URI: "postgres://localhost/db"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedStore)
}
