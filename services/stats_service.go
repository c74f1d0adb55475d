package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/escalation-league/models"
	"github.com/Dosada05/escalation-league/repositories"
)

// StatsLedger converts a completed pod's participant results into additive
// deltas on the global and league-scoped aggregates, and supports exact
// reversal. The stored per-participant elo history doubles as the applied
// marker: Apply refuses a pod that still carries history from a previous
// application, and Reverse clears it.
type StatsLedger interface {
	Apply(ctx context.Context, exec repositories.SQLExecutor, pod *models.Pod) error
	Reverse(ctx context.Context, exec repositories.SQLExecutor, pod *models.Pod) error
}

type statsService struct {
	leagueRepo repositories.LeagueRepository
	statsRepo  repositories.StatsRepository
	podRepo    repositories.PodRepository
	logger     *slog.Logger
}

func NewStatsService(
	leagueRepo repositories.LeagueRepository,
	statsRepo repositories.StatsRepository,
	podRepo repositories.PodRepository,
	logger *slog.Logger,
) StatsLedger {
	return &statsService{
		leagueRepo: leagueRepo,
		statsRepo:  statsRepo,
		podRepo:    podRepo,
		logger:     logger,
	}
}

// resultOrLoss maps a participant's result to the counted one. A nil result
// at apply time should not occur given the state machine guards; it is
// counted as a loss deliberately rather than relying on any implicit
// default.
func resultOrLoss(r *models.PlayerResult) models.PlayerResult {
	if r == nil {
		return models.PlayerResultLoss
	}
	return *r
}

func deltaFor(result models.PlayerResult, league *models.League) repositories.StatsDelta {
	delta := repositories.StatsDelta{Points: league.PointsFor(result)}
	switch result {
	case models.PlayerResultWin:
		delta.Wins = 1
	case models.PlayerResultDraw:
		delta.Draws = 1
	default:
		delta.Losses = 1
	}
	return delta
}

func (s *statsService) Apply(ctx context.Context, exec repositories.SQLExecutor, pod *models.Pod) error {
	// Записанная история эло означает живое, не откаченное применение:
	// повторное применение поверх неё удвоило бы статистику.
	for i := range pod.Participants {
		if pod.Participants[i].EloChange != nil {
			s.logger.Error("stats already applied for pod, reversal required first",
				slog.Int("pod_id", pod.ID),
				slog.Int("player_id", pod.Participants[i].PlayerID))
			return ErrStatsReversalRequired
		}
	}

	league, err := s.leagueRepo.GetByID(ctx, pod.LeagueID)
	if err != nil {
		if errors.Is(err, repositories.ErrLeagueNotFound) {
			return fmt.Errorf("%w: league %d", ErrLeagueNotFound, pod.LeagueID)
		}
		return err
	}

	for i := range pod.Participants {
		p := &pod.Participants[i]
		delta := deltaFor(resultOrLoss(p.Result), league)
		if err := s.statsRepo.IncrementUserStats(ctx, exec, p.PlayerID, delta); err != nil {
			return fmt.Errorf("failed to apply stats for player %d in pod %d: %w", p.PlayerID, pod.ID, err)
		}
		if err := s.statsRepo.IncrementUserLeagueStats(ctx, exec, p.PlayerID, pod.LeagueID, delta); err != nil {
			return fmt.Errorf("failed to apply league stats for player %d in pod %d: %w", p.PlayerID, pod.ID, err)
		}
	}

	if err := s.applyElo(ctx, exec, pod); err != nil {
		return err
	}

	s.logger.Debug("game stats applied",
		slog.Int("pod_id", pod.ID),
		slog.Int("league_id", pod.LeagueID),
		slog.Int("participants", len(pod.Participants)))
	return nil
}

func (s *statsService) Reverse(ctx context.Context, exec repositories.SQLExecutor, pod *models.Pod) error {
	league, err := s.leagueRepo.GetByID(ctx, pod.LeagueID)
	if err != nil {
		if errors.Is(err, repositories.ErrLeagueNotFound) {
			return fmt.Errorf("%w: league %d", ErrLeagueNotFound, pod.LeagueID)
		}
		return err
	}

	for i := range pod.Participants {
		p := &pod.Participants[i]
		delta := deltaFor(resultOrLoss(p.Result), league).Negated()
		if err := s.statsRepo.IncrementUserStats(ctx, exec, p.PlayerID, delta); err != nil {
			return fmt.Errorf("failed to reverse stats for player %d in pod %d: %w", p.PlayerID, pod.ID, err)
		}
		if err := s.statsRepo.IncrementUserLeagueStats(ctx, exec, p.PlayerID, pod.LeagueID, delta); err != nil {
			return fmt.Errorf("failed to reverse league stats for player %d in pod %d: %w", p.PlayerID, pod.ID, err)
		}

		// Elo is reversed from the stored per-participant change, not
		// recomputed: ratings of other players may have moved since.
		if p.EloChange != nil && *p.EloChange != 0 {
			if err := s.statsRepo.AdjustUserElo(ctx, exec, p.PlayerID, -*p.EloChange); err != nil {
				return fmt.Errorf("failed to reverse elo for player %d in pod %d: %w", p.PlayerID, pod.ID, err)
			}
			if err := s.statsRepo.AdjustUserLeagueElo(ctx, exec, p.PlayerID, pod.LeagueID, -*p.EloChange); err != nil {
				return fmt.Errorf("failed to reverse league elo for player %d in pod %d: %w", p.PlayerID, pod.ID, err)
			}
		}
	}

	// Очищенная история помечает под как откаченный; следующее применение
	// снова допустимо.
	if err := s.podRepo.ClearParticipantElo(ctx, exec, pod.ID); err != nil {
		return err
	}

	s.logger.Debug("game stats reversed",
		slog.Int("pod_id", pod.ID),
		slog.Int("league_id", pod.LeagueID),
		slog.Int("participants", len(pod.Participants)))
	return nil
}

func (s *statsService) applyElo(ctx context.Context, exec repositories.SQLExecutor, pod *models.Pod) error {
	players := make([]EloPlayer, 0, len(pod.Participants))
	for i := range pod.Participants {
		p := &pod.Participants[i]

		wins, losses, draws, elo, err := s.statsRepo.GetUserAggregates(ctx, exec, p.PlayerID)
		if err != nil {
			if errors.Is(err, repositories.ErrStatsUserNotFound) {
				elo = StartingElo
			} else {
				return fmt.Errorf("failed to load elo inputs for player %d: %w", p.PlayerID, err)
			}
		}

		turnOrder := 2 // neutral seat when no turn order was recorded
		if p.TurnOrder != nil {
			turnOrder = *p.TurnOrder
		}
		players = append(players, EloPlayer{
			PlayerID:    p.PlayerID,
			CurrentElo:  elo,
			Result:      p.Result,
			TurnOrder:   turnOrder,
			GamesPlayed: wins + losses + draws,
		})
	}

	for _, change := range CalculateEloChanges(players) {
		if change.EloChange != 0 {
			if err := s.statsRepo.AdjustUserElo(ctx, exec, change.PlayerID, change.EloChange); err != nil {
				return fmt.Errorf("failed to adjust elo for player %d: %w", change.PlayerID, err)
			}
			if err := s.statsRepo.AdjustUserLeagueElo(ctx, exec, change.PlayerID, pod.LeagueID, change.EloChange); err != nil {
				return fmt.Errorf("failed to adjust league elo for player %d: %w", change.PlayerID, err)
			}
		}
		// History for exact reversal and audit.
		if err := s.podRepo.SetParticipantElo(ctx, exec, pod.ID, change.PlayerID, change.EloChange, change.EloBefore); err != nil {
			return fmt.Errorf("failed to store elo history for player %d in pod %d: %w", change.PlayerID, pod.ID, err)
		}
	}
	return nil
}
