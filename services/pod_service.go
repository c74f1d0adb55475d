package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/escalation-league/models"
	"github.com/Dosada05/escalation-league/realtime"
	"github.com/Dosada05/escalation-league/repositories"
)

// CreatePodInput описывает запрос на создание пода. Пустой PlayerIDs даёт
// открытый под с создателем в составе; заполненный - активный под с готовым
// составом. TurnOrder (если задан) перечисляет id игроков в порядке ходов.
type CreatePodInput struct {
	LeagueID  int   `json:"league_id"`
	PlayerIDs []int `json:"player_ids,omitempty"`
	TurnOrder []int `json:"turn_order,omitempty"`
}

// AdminOverrideInput supplies the outcome when an admin force-completes a pod
// that never had a declaration. WinnerID is required for a win result and
// must be nil for a draw.
type AdminOverrideInput struct {
	Result   *models.PodResult `json:"result,omitempty"`
	WinnerID *int              `json:"winner_id,omitempty"`
}

// AdminEditPodInput is a partial rewrite of a pod: each nil field is left
// untouched.
type AdminEditPodInput struct {
	Participants []models.Participant `json:"participants,omitempty"`
	Result       *models.PodResult    `json:"result,omitempty"`
	Status       *models.PodStatus    `json:"status,omitempty"`
}

type PodService interface {
	CreatePod(ctx context.Context, actorID int, input CreatePodInput) (*models.Pod, error)
	JoinPod(ctx context.Context, actorID, podID int) (*models.Pod, error)
	ActivatePod(ctx context.Context, actorID, podID int) error
	DeclareResult(ctx context.Context, actorID, podID int, result models.PodResult) error
	ConfirmResult(ctx context.Context, actorID, podID int) (bool, error)

	GetPod(ctx context.Context, actorID, podID int) (*models.Pod, error)
	ListPods(ctx context.Context, actorID, leagueID int, status *models.PodStatus) ([]*models.Pod, error)

	AdminOverrideComplete(ctx context.Context, actorID, podID int, input AdminOverrideInput) error
	AdminEditPod(ctx context.Context, actorID, podID int, input AdminEditPodInput) error
	AdminRemoveParticipant(ctx context.Context, actorID, podID, playerID int) error
	AdminDeletePod(ctx context.Context, actorID, podID int) error

	// ActivateReadyPods flips every full open pod to active. Called from the
	// background scheduler; returns the number of pods activated.
	ActivateReadyPods(ctx context.Context) (int, error)
}

type podService struct {
	tx         repositories.TxRunner
	podRepo    repositories.PodRepository
	leagueRepo repositories.LeagueRepository
	userRepo   repositories.UserRepository
	stats      StatsLedger
	caps       CapabilityResolver
	hub        realtime.Broadcaster
	logger     *slog.Logger
}

func NewPodService(
	tx repositories.TxRunner,
	podRepo repositories.PodRepository,
	leagueRepo repositories.LeagueRepository,
	userRepo repositories.UserRepository,
	stats StatsLedger,
	caps CapabilityResolver,
	hub realtime.Broadcaster,
	logger *slog.Logger,
) PodService {
	return &podService{
		tx:         tx,
		podRepo:    podRepo,
		leagueRepo: leagueRepo,
		userRepo:   userRepo,
		stats:      stats,
		caps:       caps,
		hub:        hub,
		logger:     logger,
	}
}

// mapPodRepoError translates storage sentinels into the service taxonomy.
func mapPodRepoError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrPodNotFound):
		return ErrPodNotFound
	case errors.Is(err, repositories.ErrPodCapacityReached):
		return ErrPodFull
	case errors.Is(err, repositories.ErrPodPlayerDuplicate):
		return ErrAlreadyInPod
	case errors.Is(err, repositories.ErrPodStatusConflict):
		return ErrInvalidTransition
	case errors.Is(err, repositories.ErrPodResultAlreadyClaimed):
		return ErrResultAlreadyDeclared
	case errors.Is(err, repositories.ErrPodLeagueInvalid):
		return ErrLeagueNotFound
	case errors.Is(err, repositories.ErrPodPlayerInvalid):
		return ErrUserNotFound
	case errors.Is(err, repositories.ErrPodParticipantNotFound):
		return ErrParticipantNotFound
	}
	return err
}

func (s *podService) requireCapability(ctx context.Context, userID int, cap Capability) error {
	allowed, err := s.caps.HasCapability(ctx, userID, cap)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrForbiddenOperation
	}
	return nil
}

func (s *podService) requireMembership(ctx context.Context, userID, leagueID int) error {
	member, err := s.leagueRepo.IsMember(ctx, userID, leagueID)
	if err != nil {
		return err
	}
	if !member {
		return ErrNotALeagueMember
	}
	return nil
}

func (s *podService) CreatePod(ctx context.Context, actorID int, input CreatePodInput) (*models.Pod, error) {
	if err := s.requireCapability(ctx, actorID, CapPodCreate); err != nil {
		return nil, err
	}
	if _, err := s.leagueRepo.GetByID(ctx, input.LeagueID); err != nil {
		if errors.Is(err, repositories.ErrLeagueNotFound) {
			return nil, ErrLeagueNotFound
		}
		return nil, err
	}
	if err := s.requireMembership(ctx, actorID, input.LeagueID); err != nil {
		return nil, err
	}

	roster, err := s.buildRoster(ctx, actorID, input)
	if err != nil {
		return nil, err
	}

	pod := &models.Pod{
		LeagueID:  input.LeagueID,
		CreatorID: actorID,
		Status:    models.PodStatusOpen,
	}
	if len(input.PlayerIDs) > 0 {
		pod.Status = models.PodStatusActive
	}

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.podRepo.Create(ctx, exec, pod); err != nil {
			return mapPodRepoError(err)
		}
		for i := range roster {
			roster[i].PodID = pod.ID
			if err := s.podRepo.AddParticipant(ctx, exec, &roster[i]); err != nil {
				return mapPodRepoError(err)
			}
		}
		pod.Participants = roster
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("pod created",
		slog.Int("pod_id", pod.ID),
		slog.Int("league_id", pod.LeagueID),
		slog.Int("creator_id", actorID),
		slog.String("status", string(pod.Status)))
	s.hub.BroadcastToLeague(pod.LeagueID, realtime.Event{
		Type:     realtime.EventPodCreated,
		LeagueID: pod.LeagueID,
		Payload:  realtime.PodCreatedPayload{Pod: *pod},
	})
	return pod, nil
}

// buildRoster validates a create request and resolves the initial participant
// rows, display names included.
func (s *podService) buildRoster(ctx context.Context, actorID int, input CreatePodInput) ([]models.Participant, error) {
	playerIDs := input.PlayerIDs
	if len(playerIDs) == 0 {
		// Открытый под: создатель занимает первое место, остальные
		// присоединяются позже.
		playerIDs = []int{actorID}
	} else if len(playerIDs) < models.MinPodPlayers || len(playerIDs) > models.MaxPodPlayers {
		return nil, ErrInvalidRosterSize
	}

	seen := make(map[int]bool, len(playerIDs))
	for _, id := range playerIDs {
		if seen[id] {
			return nil, fmt.Errorf("%w: duplicate player %d", ErrValidationFailed, id)
		}
		seen[id] = true
	}

	seats := make(map[int]int, len(playerIDs))
	if len(input.TurnOrder) > 0 {
		if len(input.TurnOrder) != len(playerIDs) {
			return nil, ErrInvalidTurnOrder
		}
		for seat, id := range input.TurnOrder {
			if !seen[id] {
				return nil, ErrInvalidTurnOrder
			}
			if _, dup := seats[id]; dup {
				return nil, ErrInvalidTurnOrder
			}
			seats[id] = seat + 1
		}
	}

	roster := make([]models.Participant, 0, len(playerIDs))
	for _, id := range playerIDs {
		if err := s.requireMembership(ctx, id, input.LeagueID); err != nil {
			return nil, err
		}
		user, err := s.userRepo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repositories.ErrUserNotFound) {
				return nil, fmt.Errorf("%w: player %d", ErrUserNotFound, id)
			}
			return nil, err
		}
		p := models.Participant{
			PlayerID:  user.ID,
			FirstName: user.FirstName,
			LastName:  user.LastName,
		}
		if seat, ok := seats[id]; ok {
			seatCopy := seat
			p.TurnOrder = &seatCopy
		}
		roster = append(roster, p)
	}
	return roster, nil
}

func (s *podService) JoinPod(ctx context.Context, actorID, podID int) (*models.Pod, error) {
	if err := s.requireCapability(ctx, actorID, CapPodUpdate); err != nil {
		return nil, err
	}

	var (
		pod    *models.Pod
		joined models.Participant
	)
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		// Блокирующее чтение: конкурирующие вступления в один под
		// выстраиваются в очередь, и проверки статуса и вместимости видят
		// актуальное состояние.
		var err error
		pod, err = s.podRepo.GetByIDForUpdate(ctx, exec, podID)
		if err != nil {
			return mapPodRepoError(err)
		}
		if pod.Status != models.PodStatusOpen {
			return ErrInvalidTransition
		}
		if pod.HasPlayer(actorID) {
			return ErrAlreadyInPod
		}
		if err := s.requireMembership(ctx, actorID, pod.LeagueID); err != nil {
			return err
		}
		user, err := s.userRepo.GetByID(ctx, actorID)
		if err != nil {
			if errors.Is(err, repositories.ErrUserNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		joined = models.Participant{
			PodID:     podID,
			PlayerID:  user.ID,
			FirstName: user.FirstName,
			LastName:  user.LastName,
		}
		if err := s.podRepo.AddParticipant(ctx, exec, &joined); err != nil {
			return mapPodRepoError(err)
		}
		pod.Participants = append(pod.Participants, joined)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.hub.BroadcastToLeague(pod.LeagueID, realtime.Event{
		Type:     realtime.EventPodPlayerJoined,
		LeagueID: pod.LeagueID,
		Payload:  realtime.PlayerJoinedPayload{PodID: podID, Player: joined},
	})
	return pod, nil
}

func (s *podService) ActivatePod(ctx context.Context, actorID, podID int) error {
	if err := s.requireCapability(ctx, actorID, CapPodUpdate); err != nil {
		return err
	}

	var leagueID int
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		pod, err := s.podRepo.GetByID(ctx, exec, podID)
		if err != nil {
			return mapPodRepoError(err)
		}
		if !pod.HasPlayer(actorID) {
			isAdmin, capErr := s.caps.HasCapability(ctx, actorID, CapPodAdminUpdate)
			if capErr != nil {
				return capErr
			}
			if !isAdmin {
				return ErrNotAParticipant
			}
		}
		if pod.Status != models.PodStatusOpen {
			return ErrInvalidTransition
		}
		if len(pod.Participants) < models.MinPodPlayers || len(pod.Participants) > models.MaxPodPlayers {
			return ErrInvalidRosterSize
		}
		leagueID = pod.LeagueID
		if err := s.podRepo.UpdateStatusIf(ctx, exec, podID, models.PodStatusOpen, models.PodStatusActive); err != nil {
			return mapPodRepoError(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.hub.BroadcastToLeague(leagueID, realtime.Event{
		Type:     realtime.EventPodActivated,
		LeagueID: leagueID,
		Payload:  realtime.PodActivatedPayload{PodID: podID},
	})
	return nil
}

// DeclareResult is the declaration gate. The pre-read rejects clients acting
// on an outdated view (the pod has already left active); the conditional
// claim then settles any remaining race so that exactly one declaration wins.
func (s *podService) DeclareResult(ctx context.Context, actorID, podID int, result models.PodResult) error {
	if !models.IsValidPodResult(result) {
		return ErrInvalidPodResult
	}
	if err := s.requireCapability(ctx, actorID, CapPodUpdate); err != nil {
		return err
	}

	var (
		leagueID int
		winnerID *int
	)
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		pod, err := s.podRepo.GetByID(ctx, exec, podID)
		if err != nil {
			return mapPodRepoError(err)
		}
		if !pod.HasPlayer(actorID) {
			return ErrNotAParticipant
		}
		if pod.Status != models.PodStatusActive || pod.Result != nil {
			return ErrInvalidTransition
		}
		leagueID = pod.LeagueID

		if err := s.podRepo.ClaimResult(ctx, exec, podID, result); err != nil {
			return mapPodRepoError(err)
		}

		if result == models.PodResultWin {
			actor := actorID
			winnerID = &actor
		}
		if err := s.podRepo.SetParticipantResults(ctx, exec, podID, winnerID); err != nil {
			return err
		}
		// Декларант подтверждает результат самим актом декларации.
		if err := s.podRepo.ConfirmParticipant(ctx, exec, podID, actorID); err != nil {
			return mapPodRepoError(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("pod result declared",
		slog.Int("pod_id", podID),
		slog.Int("declarer_id", actorID),
		slog.String("result", string(result)))
	s.hub.BroadcastToLeague(leagueID, realtime.Event{
		Type:     realtime.EventWinnerDeclared,
		LeagueID: leagueID,
		Payload:  realtime.WinnerDeclaredPayload{PodID: podID, WinnerID: winnerID},
	})
	return nil
}

// ConfirmResult records the caller's confirmation; when the last participant
// confirms, the pod completes and stats are applied in the same transaction.
// The returned flag reports whether this call completed the pod.
// Confirmations on one pod serialize on the pod row lock: without it, the
// final two confirmations can each update their own row, each count the
// other's row as still unconfirmed, and leave a fully-confirmed pod stuck in
// pending.
func (s *podService) ConfirmResult(ctx context.Context, actorID, podID int) (bool, error) {
	if err := s.requireCapability(ctx, actorID, CapPodUpdate); err != nil {
		return false, err
	}

	var (
		leagueID  int
		completed bool
	)
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		pod, err := s.podRepo.GetByIDForUpdate(ctx, exec, podID)
		if err != nil {
			return mapPodRepoError(err)
		}
		if !pod.HasPlayer(actorID) {
			return ErrNotAParticipant
		}
		if pod.Status != models.PodStatusPending {
			return ErrInvalidTransition
		}
		if p := pod.ParticipantByID(actorID); p != nil && p.Confirmed {
			return ErrAlreadyConfirmed
		}
		leagueID = pod.LeagueID

		if err := s.podRepo.ConfirmParticipant(ctx, exec, podID, actorID); err != nil {
			if errors.Is(err, repositories.ErrPodParticipantNotFound) {
				return ErrAlreadyConfirmed
			}
			return err
		}

		remaining, err := s.podRepo.CountUnconfirmed(ctx, exec, podID)
		if err != nil {
			return err
		}
		if remaining > 0 {
			return nil
		}

		if err := s.podRepo.UpdateStatusIf(ctx, exec, podID, models.PodStatusPending, models.PodStatusComplete); err != nil {
			return mapPodRepoError(err)
		}
		final, err := s.podRepo.GetByID(ctx, exec, podID)
		if err != nil {
			return mapPodRepoError(err)
		}
		if err := s.stats.Apply(ctx, exec, final); err != nil {
			return err
		}
		completed = true
		return nil
	})
	if err != nil {
		return false, err
	}

	s.hub.BroadcastToLeague(leagueID, realtime.Event{
		Type:     realtime.EventPodConfirmed,
		LeagueID: leagueID,
		Payload:  realtime.PodConfirmedPayload{PodID: podID, PlayerID: actorID, IsComplete: completed},
	})
	return completed, nil
}

func (s *podService) GetPod(ctx context.Context, actorID, podID int) (*models.Pod, error) {
	if err := s.requireCapability(ctx, actorID, CapPodRead); err != nil {
		return nil, err
	}
	pod, err := s.podRepo.GetByID(ctx, nil, podID)
	if err != nil {
		return nil, mapPodRepoError(err)
	}
	return pod, nil
}

func (s *podService) ListPods(ctx context.Context, actorID, leagueID int, status *models.PodStatus) ([]*models.Pod, error) {
	if err := s.requireCapability(ctx, actorID, CapPodRead); err != nil {
		return nil, err
	}
	if status != nil && !models.IsValidPodStatus(*status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidationFailed, *status)
	}

	pods, err := s.podRepo.ListByLeague(ctx, leagueID, status)
	if err != nil {
		return nil, err
	}

	// Состав подов подгружается параллельно, как и раскрытие участников
	// в списках турниров.
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, pod := range pods {
		pod := pod
		g.Go(func() error {
			participants, err := s.podRepo.GetParticipants(gCtx, nil, pod.ID)
			if err != nil {
				return err
			}
			pod.Participants = participants
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pods, nil
}

// AdminOverrideComplete force-completes a pod regardless of pending
// confirmations. A pod without a declared result needs the outcome supplied
// in the request.
func (s *podService) AdminOverrideComplete(ctx context.Context, actorID, podID int, input AdminOverrideInput) error {
	if err := s.requireCapability(ctx, actorID, CapPodAdminUpdate); err != nil {
		return err
	}

	var leagueID int
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		pod, err := s.podRepo.GetByIDForUpdate(ctx, exec, podID)
		if err != nil {
			return mapPodRepoError(err)
		}
		if pod.Status == models.PodStatusComplete {
			return ErrInvalidTransition
		}
		leagueID = pod.LeagueID

		if pod.Result == nil {
			if input.Result == nil {
				return ErrResultRequired
			}
			if !models.IsValidPodResult(*input.Result) {
				return ErrInvalidPodResult
			}
			var winnerID *int
			if *input.Result == models.PodResultWin {
				if input.WinnerID == nil || pod.ParticipantByID(*input.WinnerID) == nil {
					return fmt.Errorf("%w: a win result needs a winner from the roster", ErrValidationFailed)
				}
				winnerID = input.WinnerID
			} else if input.WinnerID != nil {
				return fmt.Errorf("%w: a draw has no winner", ErrValidationFailed)
			}
			if err := s.podRepo.SetResult(ctx, exec, podID, input.Result); err != nil {
				return mapPodRepoError(err)
			}
			if err := s.podRepo.SetParticipantResults(ctx, exec, podID, winnerID); err != nil {
				return err
			}
		}

		if err := s.podRepo.ForceCompleteParticipants(ctx, exec, podID); err != nil {
			return err
		}
		if err := s.podRepo.UpdateStatusIf(ctx, exec, podID, pod.Status, models.PodStatusComplete); err != nil {
			return mapPodRepoError(err)
		}

		final, err := s.podRepo.GetByID(ctx, exec, podID)
		if err != nil {
			return mapPodRepoError(err)
		}
		return s.stats.Apply(ctx, exec, final)
	})
	if err != nil {
		return err
	}

	s.logger.Warn("pod force-completed by admin",
		slog.Int("pod_id", podID),
		slog.Int("admin_id", actorID))
	s.hub.BroadcastToLeague(leagueID, realtime.Event{
		Type:     realtime.EventPodConfirmed,
		LeagueID: leagueID,
		Payload:  realtime.PodConfirmedPayload{PodID: podID, PlayerID: actorID, IsComplete: true},
	})
	return nil
}

// AdminEditPod rewrites parts of a pod. When the pod was complete, the old
// stats are reversed first and reapplied only if the edited pod is complete
// again, so aggregates always reflect exactly one application per completed
// pod.
func (s *podService) AdminEditPod(ctx context.Context, actorID, podID int, input AdminEditPodInput) error {
	if err := s.requireCapability(ctx, actorID, CapPodAdminUpdate); err != nil {
		return err
	}
	if input.Status != nil && !models.IsValidPodStatus(*input.Status) {
		return fmt.Errorf("%w: unknown status %q", ErrValidationFailed, *input.Status)
	}
	if input.Result != nil && !models.IsValidPodResult(*input.Result) {
		return ErrInvalidPodResult
	}

	return s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		// Блокирующее чтение: два одновременных редактирования не могут
		// дважды откатить статистику одного пода.
		pod, err := s.podRepo.GetByIDForUpdate(ctx, exec, podID)
		if err != nil {
			return mapPodRepoError(err)
		}

		if pod.Status == models.PodStatusComplete {
			if err := s.stats.Reverse(ctx, exec, pod); err != nil {
				return err
			}
		}

		if input.Participants != nil {
			if len(input.Participants) < models.MinPodPlayers || len(input.Participants) > models.MaxPodPlayers {
				return ErrInvalidRosterSize
			}
			if err := s.podRepo.ReplaceParticipants(ctx, exec, podID, input.Participants); err != nil {
				return mapPodRepoError(err)
			}
		}
		if input.Result != nil {
			if err := s.podRepo.SetResult(ctx, exec, podID, input.Result); err != nil {
				return mapPodRepoError(err)
			}
		}
		if input.Status != nil && *input.Status != pod.Status {
			if err := s.podRepo.UpdateStatusIf(ctx, exec, podID, pod.Status, *input.Status); err != nil {
				return mapPodRepoError(err)
			}
		}

		final, err := s.podRepo.GetByID(ctx, exec, podID)
		if err != nil {
			return mapPodRepoError(err)
		}
		if final.Status != models.PodStatusComplete {
			return nil
		}
		if final.Result == nil {
			return ErrResultRequired
		}
		// Ledger refuses a second application while elo history from the
		// previous one is still recorded.
		return s.stats.Apply(ctx, exec, final)
	})
}

func (s *podService) AdminRemoveParticipant(ctx context.Context, actorID, podID, playerID int) error {
	if err := s.requireCapability(ctx, actorID, CapPodAdminUpdate); err != nil {
		return err
	}
	return s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		pod, err := s.podRepo.GetByIDForUpdate(ctx, exec, podID)
		if err != nil {
			return mapPodRepoError(err)
		}
		if pod.Status == models.PodStatusComplete {
			return ErrInvalidTransition
		}
		if err := s.podRepo.RemoveParticipant(ctx, exec, podID, playerID); err != nil {
			return mapPodRepoError(err)
		}
		return nil
	})
}

func (s *podService) AdminDeletePod(ctx context.Context, actorID, podID int) error {
	if err := s.requireCapability(ctx, actorID, CapPodAdminUpdate); err != nil {
		return err
	}

	var leagueID int
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		pod, err := s.podRepo.GetByIDForUpdate(ctx, exec, podID)
		if err != nil {
			return mapPodRepoError(err)
		}
		leagueID = pod.LeagueID
		if pod.Status == models.PodStatusComplete {
			if err := s.stats.Reverse(ctx, exec, pod); err != nil {
				return err
			}
		}
		if err := s.podRepo.Delete(ctx, exec, podID); err != nil {
			return mapPodRepoError(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Warn("pod deleted by admin",
		slog.Int("pod_id", podID),
		slog.Int("admin_id", actorID))
	s.hub.BroadcastToLeague(leagueID, realtime.Event{
		Type:     realtime.EventPodDeleted,
		LeagueID: leagueID,
		Payload:  realtime.PodDeletedPayload{PodID: podID},
	})
	return nil
}

func (s *podService) ActivateReadyPods(ctx context.Context) (int, error) {
	ids, err := s.podRepo.ListOpenFull(ctx)
	if err != nil {
		return 0, err
	}

	activated := 0
	for _, podID := range ids {
		var leagueID int
		err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
			pod, err := s.podRepo.GetByID(ctx, exec, podID)
			if err != nil {
				return mapPodRepoError(err)
			}
			leagueID = pod.LeagueID
			return mapPodRepoError(
				s.podRepo.UpdateStatusIf(ctx, exec, podID, models.PodStatusOpen, models.PodStatusActive))
		})
		if err != nil {
			// Someone else moved the pod between the sweep query and the
			// swap; nothing to do for it.
			if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrPodNotFound) {
				continue
			}
			return activated, err
		}

		activated++
		s.hub.BroadcastToLeague(leagueID, realtime.Event{
			Type:     realtime.EventPodActivated,
			LeagueID: leagueID,
			Payload:  realtime.PodActivatedPayload{PodID: podID},
		})
	}
	if activated > 0 {
		s.logger.Info("full open pods activated", slog.Int("count", activated))
	}
	return activated, nil
}
