package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var (
	ErrStatsUserNotFound       = errors.New("user stats row not found")
	ErrStatsUserLeagueNotFound = errors.New("user league stats row not found")
)

// StatsDelta is one participant's contribution to the aggregate counters.
// Values are +1/-1 scaled; applying then reversing the same delta nets to
// zero on every column.
type StatsDelta struct {
	Wins   int
	Losses int
	Draws  int
	Points int
}

func (d StatsDelta) Negated() StatsDelta {
	return StatsDelta{Wins: -d.Wins, Losses: -d.Losses, Draws: -d.Draws, Points: -d.Points}
}

// StatsRepository mutates the two aggregates (global user record and
// league-scoped user record) with additive deltas only. It never overwrites
// a counter, which is what makes reversal exact.
type StatsRepository interface {
	IncrementUserStats(ctx context.Context, exec SQLExecutor, userID int, delta StatsDelta) error
	IncrementUserLeagueStats(ctx context.Context, exec SQLExecutor, userID, leagueID int, delta StatsDelta) error
	AdjustUserElo(ctx context.Context, exec SQLExecutor, userID, eloDelta int) error
	AdjustUserLeagueElo(ctx context.Context, exec SQLExecutor, userID, leagueID, eloDelta int) error
	GetUserAggregates(ctx context.Context, exec SQLExecutor, userID int) (wins, losses, draws, elo int, err error)
}

type postgresStatsRepository struct {
	db *sql.DB
}

func NewPostgresStatsRepository(db *sql.DB) StatsRepository {
	return &postgresStatsRepository{db: db}
}

func (r *postgresStatsRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresStatsRepository) IncrementUserStats(ctx context.Context, exec SQLExecutor, userID int, delta StatsDelta) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx, `
		UPDATE users
		SET wins = wins + $1, losses = losses + $2, draws = draws + $3
		WHERE id = $4`,
		delta.Wins, delta.Losses, delta.Draws, userID)
	if err != nil {
		return fmt.Errorf("failed to increment user stats for %d: %w", userID, err)
	}
	return checkAffectedRows(result, ErrStatsUserNotFound)
}

func (r *postgresStatsRepository) IncrementUserLeagueStats(ctx context.Context, exec SQLExecutor, userID, leagueID int, delta StatsDelta) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx, `
		UPDATE user_leagues
		SET league_wins = league_wins + $1,
		    league_losses = league_losses + $2,
		    league_draws = league_draws + $3,
		    total_points = total_points + $4
		WHERE user_id = $5 AND league_id = $6`,
		delta.Wins, delta.Losses, delta.Draws, delta.Points, userID, leagueID)
	if err != nil {
		return fmt.Errorf("failed to increment league stats for user %d league %d: %w", userID, leagueID, err)
	}
	return checkAffectedRows(result, ErrStatsUserLeagueNotFound)
}

func (r *postgresStatsRepository) AdjustUserElo(ctx context.Context, exec SQLExecutor, userID, eloDelta int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx,
		`UPDATE users SET elo_rating = elo_rating + $1 WHERE id = $2`, eloDelta, userID)
	if err != nil {
		return fmt.Errorf("failed to adjust elo for user %d: %w", userID, err)
	}
	return checkAffectedRows(result, ErrStatsUserNotFound)
}

func (r *postgresStatsRepository) AdjustUserLeagueElo(ctx context.Context, exec SQLExecutor, userID, leagueID, eloDelta int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx,
		`UPDATE user_leagues SET elo_rating = elo_rating + $1 WHERE user_id = $2 AND league_id = $3`,
		eloDelta, userID, leagueID)
	if err != nil {
		return fmt.Errorf("failed to adjust league elo for user %d league %d: %w", userID, leagueID, err)
	}
	return checkAffectedRows(result, ErrStatsUserLeagueNotFound)
}

func (r *postgresStatsRepository) GetUserAggregates(ctx context.Context, exec SQLExecutor, userID int) (int, int, int, int, error) {
	executor := r.getExecutor(exec)
	var wins, losses, draws, elo int
	err := executor.QueryRowContext(ctx,
		`SELECT wins, losses, draws, elo_rating FROM users WHERE id = $1`, userID).
		Scan(&wins, &losses, &draws, &elo)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, 0, 0, ErrStatsUserNotFound
		}
		return 0, 0, 0, 0, fmt.Errorf("failed to read aggregates for user %d: %w", userID, err)
	}
	return wins, losses, draws, elo, nil
}
