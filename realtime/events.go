package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/Dosada05/escalation-league/models"
)

// EventType is the closed catalog of pod events. Anything else on the wire
// is rejected at the boundary.
type EventType string

const (
	EventPodCreated      EventType = "pod:created"
	EventPodPlayerJoined EventType = "pod:player_joined"
	EventPodActivated    EventType = "pod:activated"
	EventWinnerDeclared  EventType = "pod:winner_declared"
	EventPodConfirmed    EventType = "pod:confirmed"
	EventPodDeleted      EventType = "pod:deleted"
)

// Event is one committed state transition. Events are advisory: consumers
// treat them as hints and fall back to the authoritative store when a payload
// cannot be applied cleanly.
type Event struct {
	Type     EventType   `json:"type"`
	LeagueID int         `json:"league_id"`
	Payload  interface{} `json:"payload"`
}

// PodCreatedPayload carries the full pod so subscribers can render a new
// open or active pod without a fetch.
type PodCreatedPayload struct {
	Pod models.Pod `json:"pod"`
}

type PlayerJoinedPayload struct {
	PodID  int                `json:"pod_id"`
	Player models.Participant `json:"player"`
}

type PodActivatedPayload struct {
	PodID int `json:"pod_id"`
}

// WinnerDeclaredPayload has a nil WinnerID for a draw.
type WinnerDeclaredPayload struct {
	PodID    int  `json:"pod_id"`
	WinnerID *int `json:"winner_id"`
}

// PodConfirmedPayload flags the pending→complete edge with IsComplete.
type PodConfirmedPayload struct {
	PodID      int  `json:"pod_id"`
	PlayerID   int  `json:"player_id"`
	IsComplete bool `json:"is_complete"`
}

type PodDeletedPayload struct {
	PodID int `json:"pod_id"`
}

// Broadcaster publishes one event per committed transition to every client
// subscribed to the pod's league room. Delivery is best-effort.
type Broadcaster interface {
	BroadcastToLeague(leagueID int, event Event)
}

// NopBroadcaster drops every event; used when a service runs without a
// realtime transport (one-shot admin tooling, tests).
type NopBroadcaster struct{}

func (NopBroadcaster) BroadcastToLeague(int, Event) {}

// DecodeEvent parses a wire message into an Event with a concretely typed
// payload, or fails for unknown event types.
func DecodeEvent(data []byte) (Event, error) {
	var raw struct {
		Type     EventType       `json:"type"`
		LeagueID int             `json:"league_id"`
		Payload  json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Event{}, fmt.Errorf("failed to decode event envelope: %w", err)
	}

	ev := Event{Type: raw.Type, LeagueID: raw.LeagueID}
	var payload interface{}
	switch raw.Type {
	case EventPodCreated:
		payload = &PodCreatedPayload{}
	case EventPodPlayerJoined:
		payload = &PlayerJoinedPayload{}
	case EventPodActivated:
		payload = &PodActivatedPayload{}
	case EventWinnerDeclared:
		payload = &WinnerDeclaredPayload{}
	case EventPodConfirmed:
		payload = &PodConfirmedPayload{}
	case EventPodDeleted:
		payload = &PodDeletedPayload{}
	default:
		return Event{}, fmt.Errorf("unknown event type %q", raw.Type)
	}
	if err := json.Unmarshal(raw.Payload, payload); err != nil {
		return Event{}, fmt.Errorf("failed to decode %s payload: %w", raw.Type, err)
	}
	ev.Payload = payload
	return ev, nil
}
