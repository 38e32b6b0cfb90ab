package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/gridparty/tictactoe-relay/internal/entity"
)

// Stats are the all-time outcome tallies across finished games.
type Stats struct {
	XWins int64 `json:"x_wins"`
	OWins int64 `json:"o_wins"`
	Draws int64 `json:"draws"`
}

// ResultArchive records finished-game outcomes. Live rooms never touch it;
// it only hears about games that already ended.
type ResultArchive interface {
	RecordResult(ctx context.Context, winner string) error
	Stats(ctx context.Context) (Stats, error)
}

var ErrUnknownResult = errors.New("unknown game result")

type dbArchive struct {
	client *redis.Client
}

func NewResultArchive(client *redis.Client) ResultArchive {
	return &dbArchive{
		client: client,
	}
}

// RecordResult bumps the counter for the winner mark, or the draw counter
// for entity.PlayerTie.
func (that *dbArchive) RecordResult(ctx context.Context, winner string) error {
	key, err := resultKey(winner)
	if err != nil {
		return err
	}

	if err = that.client.Incr(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to record result: %w", err)
	}

	return nil
}

func (that *dbArchive) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{}

	counters := []struct {
		winner string
		target *int64
	}{
		{entity.PlayerX, &stats.XWins},
		{entity.PlayerO, &stats.OWins},
		{entity.PlayerTie, &stats.Draws},
	}

	for _, counter := range counters {
		key, err := resultKey(counter.winner)
		if err != nil {
			return Stats{}, err
		}

		value, err := that.client.Get(ctx, key).Int64()
		if errors.Is(err, redis.Nil) {
			continue
		}

		if err != nil {
			return Stats{}, fmt.Errorf("failed to get counter %s: %w", key, err)
		}

		*counter.target = value
	}

	return stats, nil
}

func resultKey(winner string) (string, error) {
	switch winner {
	case entity.PlayerX:
		return "results:x", nil
	case entity.PlayerO:
		return "results:o", nil
	case entity.PlayerTie:
		return "results:draw", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownResult, winner)
	}
}
