package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ресурс не найден
	ErrPodNotFound         = errors.New("pod not found")
	ErrLeagueNotFound      = errors.New("league not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrParticipantNotFound = errors.New("participant not found in this pod")

	// Ошибки валидации и бизнес-правил
	ErrValidationFailed  = errors.New("validation failed")
	ErrInvalidPodResult  = errors.New("result must be either win or draw")
	ErrInvalidRosterSize = errors.New("a pre-rostered pod requires 3 or 4 players")
	ErrInvalidTurnOrder  = errors.New("turn order must list each rostered player exactly once")
	ErrResultRequired    = errors.New("a result is required to complete a pod without a declaration")
	ErrInvalidTransition = errors.New("operation not permitted in the pod's current status")
	ErrPodFull           = errors.New("pod already has the maximum number of players")
	ErrAlreadyInPod      = errors.New("player is already in this pod")
	ErrAlreadyConfirmed  = errors.New("player has already confirmed this result")
	ErrNotAParticipant   = errors.New("player is not a participant of this pod")
	ErrNotALeagueMember  = errors.New("user is not an active member of this league")

	// Отказ шлюза деклараций: ожидаемая гонка, а не ошибка клиента.
	// The message is part of the contract; clients string-match it to render
	// "someone already won" instead of a generic failure.
	ErrResultAlreadyDeclared = errors.New("a result has already been declared for this pod")

	// Ошибки авторизации
	ErrForbiddenOperation = errors.New("operation not allowed for the current user")

	// Integrity alarm: an admin edit tried to apply stats on top of
	// unreversed ones. Never retried, always logged.
	ErrStatsReversalRequired = errors.New("stats must be reversed before they can be applied again")
)
