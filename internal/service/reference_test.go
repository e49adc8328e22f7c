package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domerrors "github.com/quillpress/quill-server/internal/errors"
)

func TestReferenceService_Genres(t *testing.T) {
	env := setupTestEnv(t, Config{})
	ctx := context.Background()

	g, err := env.refs.CreateGenre(ctx, CreateGenreRequest{Name: "Science Fiction"})
	require.NoError(t, err)
	assert.Equal(t, "science-fiction", g.FilterName)

	_, err = env.refs.CreateGenre(ctx, CreateGenreRequest{Name: "science fiction"})
	assert.ErrorIs(t, err, domerrors.ErrConflict)

	_, err = env.refs.CreateGenre(ctx, CreateGenreRequest{Name: "!!!"})
	assert.ErrorIs(t, err, domerrors.ErrValidation)

	genres, err := env.refs.ListGenres(ctx)
	require.NoError(t, err)
	require.Len(t, genres, 1)
	assert.Equal(t, "Science Fiction", genres[0].Name)

	_, err = env.refs.CreateGenre(ctx, CreateGenreRequest{Name: "Horror"})
	require.NoError(t, err)

	cached, err := env.refs.ListGenres(ctx)
	require.NoError(t, err)
	assert.Len(t, cached, 1, "genre list is served from cache until it expires")
}

func TestReferenceService_Statuses(t *testing.T) {
	env := setupTestEnv(t, Config{})
	ctx := context.Background()

	for _, name := range []string{"ongoing", "completed"} {
		_, err := env.refs.CreateStatus(ctx, CreateStatusRequest{Name: name})
		require.NoError(t, err)
	}
	_, err := env.refs.CreateStatus(ctx, CreateStatusRequest{Name: "ongoing"})
	assert.ErrorIs(t, err, domerrors.ErrConflict)

	statuses, err := env.refs.ListStatuses(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.Equal(t, "completed", statuses[0].Name)
}
