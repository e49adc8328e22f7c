package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillpress/quill-server/internal/config"
	"github.com/quillpress/quill-server/internal/store"
	"github.com/quillpress/quill-server/internal/store/dynamo"
)

func TestOpenContentStore_Badger(t *testing.T) {
	cfg := &config.Config{
		Storage: config.StorageConfig{DataPath: t.TempDir()},
		Content: config.ContentConfig{Backend: config.BackendBadger},
	}

	s, err := OpenContentStore(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	assert.IsType(t, &store.Store{}, s)
}

func TestOpenContentStore_DynamoDB(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	cfg := &config.Config{
		Storage: config.StorageConfig{DataPath: t.TempDir()},
		Content: config.ContentConfig{Backend: config.BackendDynamoDB},
		Dynamo: config.DynamoConfig{
			Table:    "chapters",
			Region:   "us-east-1",
			Endpoint: "http://localhost:8000",
		},
	}

	s, err := OpenContentStore(context.Background(), cfg, nil)
	require.NoError(t, err)

	assert.IsType(t, &dynamo.Store{}, s)
}

func TestOpenContentStore_UnknownBackend(t *testing.T) {
	cfg := &config.Config{
		Storage: config.StorageConfig{DataPath: t.TempDir()},
		Content: config.ContentConfig{Backend: "tape"},
	}

	_, err := OpenContentStore(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "tape")
}
