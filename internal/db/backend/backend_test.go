package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacesedan/tickersense/config"
	"github.com/spacesedan/tickersense/internal/db/memory"
)

func TestOpen_Memory(t *testing.T) {
	store, err := Open(context.Background(), config.StoreConfig{Backend: Memory})
	require.NoError(t, err)
	defer store.Close()

	assert.IsType(t, &memory.Store{}, store)
	assert.NoError(t, store.Ping(context.Background()))
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Backend: "sqlite"})
	assert.ErrorContains(t, err, "unknown backend")
}
