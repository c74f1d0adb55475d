package models

import "time"

// League настройки начисления очков приходят из внешнего CRUD лиг; здесь
// читаются только поля, нужные леджеру статистики.
type League struct {
	ID            int       `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	PointsPerWin  int       `json:"points_per_win" db:"points_per_win"`
	PointsPerLoss int       `json:"points_per_loss" db:"points_per_loss"`
	PointsPerDraw int       `json:"points_per_draw" db:"points_per_draw"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// Default point values when a league row predates the points columns.
const (
	DefaultPointsPerWin  = 4
	DefaultPointsPerLoss = 1
	DefaultPointsPerDraw = 1
)

// PointsFor maps a participant result to league points.
func (l *League) PointsFor(result PlayerResult) int {
	switch result {
	case PlayerResultWin:
		if l.PointsPerWin != 0 {
			return l.PointsPerWin
		}
		return DefaultPointsPerWin
	case PlayerResultLoss:
		if l.PointsPerLoss != 0 {
			return l.PointsPerLoss
		}
		return DefaultPointsPerLoss
	case PlayerResultDraw:
		if l.PointsPerDraw != 0 {
			return l.PointsPerDraw
		}
		return DefaultPointsPerDraw
	}
	return 0
}

// UserLeague is a user's league-scoped aggregate record.
type UserLeague struct {
	UserID       int  `json:"user_id" db:"user_id"`
	LeagueID     int  `json:"league_id" db:"league_id"`
	IsActive     bool `json:"is_active" db:"is_active"`
	LeagueWins   int  `json:"league_wins" db:"league_wins"`
	LeagueLosses int  `json:"league_losses" db:"league_losses"`
	LeagueDraws  int  `json:"league_draws" db:"league_draws"`
	TotalPoints  int  `json:"total_points" db:"total_points"`
	EloRating    int  `json:"elo_rating" db:"elo_rating"`
}

// LeagueMember is the roster entry used for pod creation pickers.
type LeagueMember struct {
	ID        int    `json:"id"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
}
