package models

import "time"

// PodStatus представляет статусы пода, соответствующие ENUM в БД.
type PodStatus string

const (
	PodStatusOpen     PodStatus = "open"
	PodStatusActive   PodStatus = "active"
	PodStatusPending  PodStatus = "pending"
	PodStatusComplete PodStatus = "complete"
)

// PodResult is the pod-level outcome, set exactly once by an accepted
// declaration (or an admin edit).
type PodResult string

const (
	PodResultWin  PodResult = "win"
	PodResultDraw PodResult = "draw"
)

// PlayerResult is a participant's individual outcome.
type PlayerResult string

const (
	PlayerResultWin  PlayerResult = "win"
	PlayerResultLoss PlayerResult = "loss"
	PlayerResultDraw PlayerResult = "draw"
)

const (
	// MinPodPlayers/MaxPodPlayers bound the roster of a playable pod.
	MinPodPlayers = 3
	MaxPodPlayers = 4
)

func IsValidPodStatus(s PodStatus) bool {
	switch s {
	case PodStatusOpen, PodStatusActive, PodStatusPending, PodStatusComplete:
		return true
	}
	return false
}

func IsValidPodResult(r PodResult) bool {
	return r == PodResultWin || r == PodResultDraw
}

func IsValidPlayerResult(r PlayerResult) bool {
	switch r {
	case PlayerResultWin, PlayerResultLoss, PlayerResultDraw:
		return true
	}
	return false
}

// Pod - одна игра на 3-4 участника, проходящая через цикл подтверждения
// результата.
type Pod struct {
	ID        int        `json:"id" db:"id"`
	LeagueID  int        `json:"league_id" db:"league_id"`
	CreatorID int        `json:"creator_id" db:"creator_id"`
	Status    PodStatus  `json:"status" db:"status"`
	Result    *PodResult `json:"result,omitempty" db:"result"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`

	// Populated by the service, not mapped directly.
	Participants []Participant `json:"participants,omitempty" db:"-"`
}

// Participant is a player's membership record within one pod. The name
// fields are a display cache copied from the user directory at join time;
// they are not authoritative identity.
type Participant struct {
	PodID     int           `json:"pod_id" db:"pod_id"`
	PlayerID  int           `json:"player_id" db:"player_id"`
	FirstName string        `json:"firstname" db:"firstname"`
	LastName  string        `json:"lastname" db:"lastname"`
	Result    *PlayerResult `json:"result,omitempty" db:"result"`
	Confirmed bool          `json:"confirmed" db:"confirmed"`
	TurnOrder *int          `json:"turn_order,omitempty" db:"turn_order"`

	// Elo bookkeeping written at completion so a reversal is exact.
	EloChange *int `json:"elo_change,omitempty" db:"elo_change"`
	EloBefore *int `json:"elo_before,omitempty" db:"elo_before"`
}

// HasPlayer reports whether playerID is on the pod's roster.
func (p *Pod) HasPlayer(playerID int) bool {
	for i := range p.Participants {
		if p.Participants[i].PlayerID == playerID {
			return true
		}
	}
	return false
}

// ParticipantByID returns the roster entry for playerID, or nil.
func (p *Pod) ParticipantByID(playerID int) *Participant {
	for i := range p.Participants {
		if p.Participants[i].PlayerID == playerID {
			return &p.Participants[i]
		}
	}
	return nil
}

// AllConfirmed reports whether every participant has confirmed the declared
// result. A pod may only reach PodStatusComplete once this holds.
func (p *Pod) AllConfirmed() bool {
	if len(p.Participants) == 0 {
		return false
	}
	for i := range p.Participants {
		if !p.Participants[i].Confirmed {
			return false
		}
	}
	return true
}
