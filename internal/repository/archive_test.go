package repository_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridparty/tictactoe-relay/internal/entity"
	"github.com/gridparty/tictactoe-relay/internal/repository"
	"github.com/gridparty/tictactoe-relay/testing/suite"
)

func TestResultArchive(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, s := suite.New(t)

	archive := repository.NewResultArchive(s.Storage)

	t.Run("Empty archive reports zero tallies", func(t *testing.T) {
		// When: reading stats before any game finished
		stats, err := archive.Stats(ctx)

		// Then: everything is zero
		require.NoError(t, err)
		assert.Equal(t, repository.Stats{}, stats)
	})

	t.Run("Recorded outcomes accumulate per mark", func(t *testing.T) {
		// Given: two X wins, one O win, one draw
		require.NoError(t, archive.RecordResult(ctx, entity.PlayerX))
		require.NoError(t, archive.RecordResult(ctx, entity.PlayerX))
		require.NoError(t, archive.RecordResult(ctx, entity.PlayerO))
		require.NoError(t, archive.RecordResult(ctx, entity.PlayerTie))

		// When: reading stats
		stats, err := archive.Stats(ctx)

		// Then: the tallies match
		require.NoError(t, err)
		assert.Equal(t, repository.Stats{XWins: 2, OWins: 1, Draws: 1}, stats)
	})

	t.Run("Unknown result is rejected", func(t *testing.T) {
		err := archive.RecordResult(ctx, "Z")

		require.ErrorIs(t, err, repository.ErrUnknownResult)
	})
}
