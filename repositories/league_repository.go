package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/escalation-league/models"
)

var ErrLeagueNotFound = errors.New("league not found")

// LeagueRepository exposes the slice of the external league CRUD the core
// needs: membership checks, the member roster, and point settings.
type LeagueRepository interface {
	GetByID(ctx context.Context, id int) (*models.League, error)
	IsMember(ctx context.Context, userID, leagueID int) (bool, error)
	ListMembers(ctx context.Context, leagueID int) ([]models.LeagueMember, error)
}

type postgresLeagueRepository struct {
	db *sql.DB
}

func NewPostgresLeagueRepository(db *sql.DB) LeagueRepository {
	return &postgresLeagueRepository{db: db}
}

func (r *postgresLeagueRepository) GetByID(ctx context.Context, id int) (*models.League, error) {
	query := `
		SELECT id, name, points_per_win, points_per_loss, points_per_draw, created_at
		FROM leagues
		WHERE id = $1`

	league := &models.League{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&league.ID,
		&league.Name,
		&league.PointsPerWin,
		&league.PointsPerLoss,
		&league.PointsPerDraw,
		&league.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLeagueNotFound
		}
		return nil, fmt.Errorf("failed to scan league by id %d: %w", id, err)
	}
	return league, nil
}

func (r *postgresLeagueRepository) IsMember(ctx context.Context, userID, leagueID int) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM user_leagues
			WHERE user_id = $1 AND league_id = $2 AND is_active = TRUE
		)`, userID, leagueID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check membership of user %d in league %d: %w", userID, leagueID, err)
	}
	return exists, nil
}

func (r *postgresLeagueRepository) ListMembers(ctx context.Context, leagueID int) ([]models.LeagueMember, error) {
	query := `
		SELECT u.id, u.firstname, u.lastname
		FROM user_leagues ul
		JOIN users u ON ul.user_id = u.id
		WHERE ul.league_id = $1 AND ul.is_active = TRUE
		ORDER BY u.lastname ASC, u.firstname ASC`

	rows, err := r.db.QueryContext(ctx, query, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to query members of league %d: %w", leagueID, err)
	}
	defer rows.Close()

	members := make([]models.LeagueMember, 0)
	for rows.Next() {
		var m models.LeagueMember
		if scanErr := rows.Scan(&m.ID, &m.FirstName, &m.LastName); scanErr != nil {
			return nil, fmt.Errorf("failed to scan league member row: %w", scanErr)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
