package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Dosada05/escalation-league/models"
	"github.com/lib/pq"
)

var (
	ErrPodNotFound             = errors.New("pod not found")
	ErrPodStatusConflict       = errors.New("pod status did not match expected status")
	ErrPodResultAlreadyClaimed = errors.New("pod result already claimed")
	ErrPodLeagueInvalid        = errors.New("pod league conflict or invalid")
	ErrPodPlayerInvalid        = errors.New("pod player conflict or invalid")
	ErrPodPlayerDuplicate      = errors.New("player already in pod")
	ErrPodCapacityReached      = errors.New("pod capacity reached")
	ErrPodParticipantNotFound  = errors.New("pod participant not found")
)

// PodRepository is the persisted pod store. Every status-changing write is a
// conditional update keyed on the expected prior status, never an
// unconditional overwrite.
type PodRepository interface {
	Create(ctx context.Context, exec SQLExecutor, pod *models.Pod) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Pod, error)

	// GetByIDForUpdate reads the pod while taking its row lock, so read-then-
	// write transitions on the same pod serialize for the rest of the
	// transaction. Under READ COMMITTED two racing transactions otherwise each
	// see the pre-race snapshot (e.g. the final two confirmations both
	// counting one unconfirmed row). Must run inside a transaction.
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Pod, error)

	ListByLeague(ctx context.Context, leagueID int, status *models.PodStatus) ([]*models.Pod, error)
	ListOpenFull(ctx context.Context) ([]int, error)

	AddParticipant(ctx context.Context, exec SQLExecutor, participant *models.Participant) error
	GetParticipants(ctx context.Context, exec SQLExecutor, podID int) ([]models.Participant, error)
	RemoveParticipant(ctx context.Context, exec SQLExecutor, podID, playerID int) error
	ReplaceParticipants(ctx context.Context, exec SQLExecutor, podID int, participants []models.Participant) error

	// UpdateStatusIf performs a compare-and-swap on status. It returns
	// ErrPodStatusConflict when the pod exists but is no longer in `from`.
	UpdateStatusIf(ctx context.Context, exec SQLExecutor, podID int, from, to models.PodStatus) error

	// ClaimResult is the declaration gate: atomically set the pod result and
	// move active→pending, but only while the pod is still active with no
	// result. A lost race returns ErrPodResultAlreadyClaimed.
	ClaimResult(ctx context.Context, exec SQLExecutor, podID int, result models.PodResult) error

	SetResult(ctx context.Context, exec SQLExecutor, podID int, result *models.PodResult) error
	SetParticipantResults(ctx context.Context, exec SQLExecutor, podID int, winnerID *int) error
	ConfirmParticipant(ctx context.Context, exec SQLExecutor, podID, playerID int) error
	CountUnconfirmed(ctx context.Context, exec SQLExecutor, podID int) (int, error)
	ForceCompleteParticipants(ctx context.Context, exec SQLExecutor, podID int) error
	SetParticipantElo(ctx context.Context, exec SQLExecutor, podID, playerID, eloChange, eloBefore int) error

	// ClearParticipantElo drops the stored elo history after a reversal. A
	// pod whose participants still carry elo_change has live, unreversed
	// stats.
	ClearParticipantElo(ctx context.Context, exec SQLExecutor, podID int) error

	Delete(ctx context.Context, exec SQLExecutor, podID int) error
}

type postgresPodRepository struct {
	db *sql.DB
}

func NewPostgresPodRepository(db *sql.DB) PodRepository {
	return &postgresPodRepository{db: db}
}

func (r *postgresPodRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresPodRepository) Create(ctx context.Context, exec SQLExecutor, pod *models.Pod) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO game_pods (league_id, creator_id, status, result)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		pod.LeagueID,
		pod.CreatorID,
		pod.Status,
		pod.Result,
	).Scan(&pod.ID, &pod.CreatedAt)

	return r.handlePodError(err)
}

func (r *postgresPodRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Pod, error) {
	return r.getByID(ctx, exec, id, false)
}

func (r *postgresPodRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Pod, error) {
	return r.getByID(ctx, exec, id, true)
}

func (r *postgresPodRepository) getByID(ctx context.Context, exec SQLExecutor, id int, forUpdate bool) (*models.Pod, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, league_id, creator_id, status, result, created_at
		FROM game_pods
		WHERE id = $1 AND deleted_at IS NULL`
	if forUpdate {
		query += " FOR UPDATE"
	}

	pod := &models.Pod{}
	err := executor.QueryRowContext(ctx, query, id).Scan(
		&pod.ID,
		&pod.LeagueID,
		&pod.CreatorID,
		&pod.Status,
		&pod.Result,
		&pod.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPodNotFound
		}
		return nil, fmt.Errorf("failed to scan pod by id %d: %w", id, err)
	}

	participants, err := r.GetParticipants(ctx, executor, id)
	if err != nil {
		return nil, err
	}
	pod.Participants = participants
	return pod, nil
}

func (r *postgresPodRepository) ListByLeague(ctx context.Context, leagueID int, status *models.PodStatus) ([]*models.Pod, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`
		SELECT id, league_id, creator_id, status, result, created_at
		FROM game_pods
		WHERE league_id = $1 AND deleted_at IS NULL`)

	args := []interface{}{leagueID}
	if status != nil {
		queryBuilder.WriteString(" AND status = $")
		queryBuilder.WriteString(strconv.Itoa(len(args) + 1))
		args = append(args, *status)
	}
	queryBuilder.WriteString(" ORDER BY created_at DESC, id DESC")

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pods for league %d: %w", leagueID, err)
	}
	defer rows.Close()

	pods := make([]*models.Pod, 0)
	for rows.Next() {
		var pod models.Pod
		if scanErr := rows.Scan(
			&pod.ID,
			&pod.LeagueID,
			&pod.CreatorID,
			&pod.Status,
			&pod.Result,
			&pod.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan pod row: %w", scanErr)
		}
		pods = append(pods, &pod)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during pod rows iteration: %w", err)
	}
	return pods, nil
}

// ListOpenFull returns ids of open pods that have reached capacity, for the
// auto-activation sweep.
func (r *postgresPodRepository) ListOpenFull(ctx context.Context) ([]int, error) {
	query := `
		SELECT p.id
		FROM game_pods p
		WHERE p.status = 'open' AND p.deleted_at IS NULL
		  AND (SELECT COUNT(*) FROM pod_players pp WHERE pp.pod_id = p.id) >= $1
		ORDER BY p.id`

	rows, err := r.db.QueryContext(ctx, query, models.MaxPodPlayers)
	if err != nil {
		return nil, fmt.Errorf("failed to query full open pods: %w", err)
	}
	defer rows.Close()

	ids := make([]int, 0)
	for rows.Next() {
		var id int
		if scanErr := rows.Scan(&id); scanErr != nil {
			return nil, scanErr
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AddParticipant inserts a roster entry guarded by a capacity count. The
// count subquery sees only committed rows, so the caller must hold the pod
// row lock (GetByIDForUpdate) when concurrent joins are possible; the guard
// here is a backstop against a missed lock, not a substitute for one.
func (r *postgresPodRepository) AddParticipant(ctx context.Context, exec SQLExecutor, participant *models.Participant) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO pod_players (pod_id, player_id, firstname, lastname, result, confirmed, turn_order)
		SELECT $1, $2, $3, $4, $5, $6, $7
		WHERE (SELECT COUNT(*) FROM pod_players WHERE pod_id = $1) < $8`

	result, err := executor.ExecContext(ctx, query,
		participant.PodID,
		participant.PlayerID,
		participant.FirstName,
		participant.LastName,
		participant.Result,
		participant.Confirmed,
		participant.TurnOrder,
		models.MaxPodPlayers,
	)
	if err != nil {
		return r.handlePodError(err)
	}
	return checkAffectedRows(result, ErrPodCapacityReached)
}

func (r *postgresPodRepository) GetParticipants(ctx context.Context, exec SQLExecutor, podID int) ([]models.Participant, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT pod_id, player_id, firstname, lastname, result, confirmed, turn_order, elo_change, elo_before
		FROM pod_players
		WHERE pod_id = $1
		ORDER BY turn_order ASC NULLS LAST, player_id ASC`

	rows, err := executor.QueryContext(ctx, query, podID)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants for pod %d: %w", podID, err)
	}
	defer rows.Close()

	participants := make([]models.Participant, 0)
	for rows.Next() {
		var p models.Participant
		if scanErr := rows.Scan(
			&p.PodID,
			&p.PlayerID,
			&p.FirstName,
			&p.LastName,
			&p.Result,
			&p.Confirmed,
			&p.TurnOrder,
			&p.EloChange,
			&p.EloBefore,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan participant row: %w", scanErr)
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

func (r *postgresPodRepository) RemoveParticipant(ctx context.Context, exec SQLExecutor, podID, playerID int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx,
		`DELETE FROM pod_players WHERE pod_id = $1 AND player_id = $2`, podID, playerID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrPodParticipantNotFound)
}

func (r *postgresPodRepository) ReplaceParticipants(ctx context.Context, exec SQLExecutor, podID int, participants []models.Participant) error {
	executor := r.getExecutor(exec)
	if _, err := executor.ExecContext(ctx, `DELETE FROM pod_players WHERE pod_id = $1`, podID); err != nil {
		return fmt.Errorf("failed to clear participants for pod %d: %w", podID, err)
	}
	for i := range participants {
		p := &participants[i]
		p.PodID = podID
		_, err := executor.ExecContext(ctx, `
			INSERT INTO pod_players (pod_id, player_id, firstname, lastname, result, confirmed, turn_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			p.PodID, p.PlayerID, p.FirstName, p.LastName, p.Result, p.Confirmed, p.TurnOrder,
		)
		if err != nil {
			return r.handlePodError(err)
		}
	}
	return nil
}

func (r *postgresPodRepository) UpdateStatusIf(ctx context.Context, exec SQLExecutor, podID int, from, to models.PodStatus) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx,
		`UPDATE game_pods SET status = $1 WHERE id = $2 AND status = $3 AND deleted_at IS NULL`,
		to, podID, from)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrPodStatusConflict)
}

func (r *postgresPodRepository) ClaimResult(ctx context.Context, exec SQLExecutor, podID int, podResult models.PodResult) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx, `
		UPDATE game_pods
		SET result = $1, status = $2
		WHERE id = $3 AND status = $4 AND result IS NULL AND deleted_at IS NULL`,
		podResult, models.PodStatusPending, podID, models.PodStatusActive)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrPodResultAlreadyClaimed)
}

func (r *postgresPodRepository) SetResult(ctx context.Context, exec SQLExecutor, podID int, podResult *models.PodResult) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx,
		`UPDATE game_pods SET result = $1 WHERE id = $2 AND deleted_at IS NULL`, podResult, podID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrPodNotFound)
}

// SetParticipantResults writes the outcome of an accepted declaration: the
// winner gets win and everyone else loss, or everyone draw when winnerID is
// nil.
func (r *postgresPodRepository) SetParticipantResults(ctx context.Context, exec SQLExecutor, podID int, winnerID *int) error {
	executor := r.getExecutor(exec)
	var err error
	if winnerID == nil {
		_, err = executor.ExecContext(ctx,
			`UPDATE pod_players SET result = $1 WHERE pod_id = $2`,
			models.PlayerResultDraw, podID)
	} else {
		_, err = executor.ExecContext(ctx, `
			UPDATE pod_players
			SET result = CASE WHEN player_id = $1 THEN $2::text ELSE $3::text END
			WHERE pod_id = $4`,
			*winnerID, models.PlayerResultWin, models.PlayerResultLoss, podID)
	}
	if err != nil {
		return fmt.Errorf("failed to set participant results for pod %d: %w", podID, err)
	}
	return nil
}

// ConfirmParticipant flips a single confirmation flag. The confirmed = FALSE
// guard makes repeated confirmations report ErrPodParticipantNotFound rather
// than double-counting.
func (r *postgresPodRepository) ConfirmParticipant(ctx context.Context, exec SQLExecutor, podID, playerID int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx, `
		UPDATE pod_players SET confirmed = TRUE
		WHERE pod_id = $1 AND player_id = $2 AND confirmed = FALSE`,
		podID, playerID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrPodParticipantNotFound)
}

func (r *postgresPodRepository) CountUnconfirmed(ctx context.Context, exec SQLExecutor, podID int) (int, error) {
	executor := r.getExecutor(exec)
	var count int
	err := executor.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pod_players WHERE pod_id = $1 AND confirmed = FALSE`, podID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unconfirmed participants for pod %d: %w", podID, err)
	}
	return count, nil
}

// ForceCompleteParticipants implements the admin override: unresolved results
// become loss, declared results are preserved, everyone counts as confirmed.
func (r *postgresPodRepository) ForceCompleteParticipants(ctx context.Context, exec SQLExecutor, podID int) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx, `
		UPDATE pod_players
		SET result = COALESCE(result, $1), confirmed = TRUE
		WHERE pod_id = $2`,
		models.PlayerResultLoss, podID)
	if err != nil {
		return fmt.Errorf("failed to force-complete participants for pod %d: %w", podID, err)
	}
	return nil
}

func (r *postgresPodRepository) SetParticipantElo(ctx context.Context, exec SQLExecutor, podID, playerID, eloChange, eloBefore int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx, `
		UPDATE pod_players SET elo_change = $1, elo_before = $2
		WHERE pod_id = $3 AND player_id = $4`,
		eloChange, eloBefore, podID, playerID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrPodParticipantNotFound)
}

func (r *postgresPodRepository) ClearParticipantElo(ctx context.Context, exec SQLExecutor, podID int) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx,
		`UPDATE pod_players SET elo_change = NULL, elo_before = NULL WHERE pod_id = $1`, podID)
	if err != nil {
		return fmt.Errorf("failed to clear elo history for pod %d: %w", podID, err)
	}
	return nil
}

func (r *postgresPodRepository) Delete(ctx context.Context, exec SQLExecutor, podID int) error {
	executor := r.getExecutor(exec)
	if _, err := executor.ExecContext(ctx, `DELETE FROM pod_players WHERE pod_id = $1`, podID); err != nil {
		return fmt.Errorf("failed to delete participants for pod %d: %w", podID, err)
	}
	result, err := executor.ExecContext(ctx,
		`UPDATE game_pods SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, podID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrPodNotFound)
}

func (r *postgresPodRepository) handlePodError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Constraint {
		case "game_pods_league_id_fkey":
			return ErrPodLeagueInvalid
		case "pod_players_player_id_fkey", "pod_players_pod_id_fkey":
			return ErrPodPlayerInvalid
		case "pod_players_pkey", "pod_players_pod_id_player_id_key":
			return ErrPodPlayerDuplicate
		}
	}
	return err
}
