// Package reconciler maintains a client-side view of a league's pods from
// the realtime event stream. Events are hints: whenever a payload cannot be
// applied to the local state cleanly, the reconciler refetches the pod from
// the authoritative store instead of guessing.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/Dosada05/escalation-league/models"
	"github.com/Dosada05/escalation-league/realtime"
)

// recentLimit caps the completed-pods view at the newest few games.
const recentLimit = 5

// PodFetcher loads the authoritative pod state, typically over the REST API.
type PodFetcher interface {
	FetchPod(ctx context.Context, podID int) (*models.Pod, error)
}

// LeagueSubscriber manages room membership on the realtime transport. Join
// and leave are paired by the reconciler's lifecycle so a dropped view never
// leaks a subscription.
type LeagueSubscriber interface {
	JoinLeague(leagueID int)
	LeaveLeague(leagueID int)
}

// Reconciler keeps three pod views for one user in one league: active games,
// games pending confirmation, and the most recent completed games. All event
// application is idempotent on pod and player ids.
type Reconciler struct {
	userID   int
	isAdmin  bool
	leagueID int

	fetcher    PodFetcher
	subscriber LeagueSubscriber
	logger     *slog.Logger

	// sf collapses concurrent refetches of the same pod, e.g. the optimistic
	// local declaration racing its own broadcast.
	sf singleflight.Group

	mu      sync.Mutex
	active  map[int]*models.Pod
	pending map[int]*models.Pod
	recent  []*models.Pod // newest first
	closed  bool
}

func New(userID int, isAdmin bool, leagueID int, fetcher PodFetcher, subscriber LeagueSubscriber, logger *slog.Logger) *Reconciler {
	r := &Reconciler{
		userID:     userID,
		isAdmin:    isAdmin,
		leagueID:   leagueID,
		fetcher:    fetcher,
		subscriber: subscriber,
		logger:     logger,
		active:     make(map[int]*models.Pod),
		pending:    make(map[int]*models.Pod),
	}
	if subscriber != nil {
		subscriber.JoinLeague(leagueID)
	}
	return r
}

// Close leaves the league room. Safe to call more than once.
func (r *Reconciler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	if r.subscriber != nil {
		r.subscriber.LeaveLeague(r.leagueID)
	}
}

// visible applies the same filter as the initial fetch: admins see every
// pod, players only the pods they are in.
func (r *Reconciler) visible(pod *models.Pod) bool {
	return r.isAdmin || pod.HasPlayer(r.userID)
}

// Seed installs the initial state from an authoritative list fetch. Only
// visible pods are kept; completed pods are trimmed to the newest few.
func (r *Reconciler) Seed(active, pending, completed []*models.Pod) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.active = make(map[int]*models.Pod)
	r.pending = make(map[int]*models.Pod)
	for _, pod := range active {
		if r.visible(pod) {
			r.active[pod.ID] = pod
		}
	}
	for _, pod := range pending {
		if r.visible(pod) {
			r.pending[pod.ID] = pod
		}
	}

	recent := make([]*models.Pod, 0, len(completed))
	for _, pod := range completed {
		if r.visible(pod) {
			recent = append(recent, pod)
		}
	}
	sort.Slice(recent, func(i, j int) bool {
		if !recent[i].CreatedAt.Equal(recent[j].CreatedAt) {
			return recent[i].CreatedAt.After(recent[j].CreatedAt)
		}
		return recent[i].ID > recent[j].ID
	})
	if len(recent) > recentLimit {
		recent = recent[:recentLimit]
	}
	r.recent = recent
}

// Apply folds one event into the local views.
func (r *Reconciler) Apply(ctx context.Context, ev realtime.Event) error {
	if ev.LeagueID != r.leagueID {
		return nil
	}

	switch payload := ev.Payload.(type) {
	case *realtime.PodCreatedPayload:
		r.applyCreated(&payload.Pod)
	case *realtime.PlayerJoinedPayload:
		r.applyPlayerJoined(payload)
	case *realtime.PodActivatedPayload:
		return r.applyActivated(ctx, payload.PodID)
	case *realtime.WinnerDeclaredPayload:
		return r.applyWinnerDeclared(ctx, payload.PodID)
	case *realtime.PodConfirmedPayload:
		r.applyConfirmed(payload)
	case *realtime.PodDeletedPayload:
		r.applyDeleted(payload.PodID)
	default:
		return fmt.Errorf("unsupported event payload %T", ev.Payload)
	}
	return nil
}

func (r *Reconciler) applyCreated(pod *models.Pod) {
	if pod.Status != models.PodStatusActive || !r.visible(pod) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[pod.ID]; ok {
		return
	}
	r.active[pod.ID] = pod
}

func (r *Reconciler) applyPlayerJoined(payload *realtime.PlayerJoinedPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pod, ok := r.active[payload.PodID]
	if !ok {
		return
	}
	if pod.HasPlayer(payload.Player.PlayerID) {
		return
	}
	pod.Participants = append(pod.Participants, payload.Player)
}

func (r *Reconciler) applyActivated(ctx context.Context, podID int) error {
	r.mu.Lock()
	_, known := r.active[podID]
	r.mu.Unlock()
	if known {
		return nil
	}

	pod, err := r.refetch(ctx, podID)
	if err != nil {
		return err
	}
	if pod == nil || !r.visible(pod) {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[podID]; !ok {
		r.active[podID] = pod
	}
	return nil
}

// applyWinnerDeclared moves the pod out of the active view immediately, then
// refetches to pick up the per-participant results the payload does not
// carry.
func (r *Reconciler) applyWinnerDeclared(ctx context.Context, podID int) error {
	r.mu.Lock()
	delete(r.active, podID)
	_, alreadyPending := r.pending[podID]
	r.mu.Unlock()
	if alreadyPending {
		return nil
	}

	pod, err := r.refetch(ctx, podID)
	if err != nil {
		return err
	}
	if pod == nil || !r.visible(pod) {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Не затираем запись, успевшую попасть сюда оптимистичным путём.
	if _, ok := r.pending[podID]; !ok {
		r.pending[podID] = pod
	}
	return nil
}

func (r *Reconciler) applyConfirmed(payload *realtime.PodConfirmedPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pod, ok := r.pending[payload.PodID]
	if !ok {
		return
	}

	if !payload.IsComplete {
		if p := pod.ParticipantByID(payload.PlayerID); p != nil {
			p.Confirmed = true
		}
		return
	}

	delete(r.pending, payload.PodID)
	pod.Status = models.PodStatusComplete
	for i := range r.recent {
		if r.recent[i].ID == pod.ID {
			return
		}
	}
	r.recent = append([]*models.Pod{pod}, r.recent...)
	if len(r.recent) > recentLimit {
		r.recent = r.recent[:recentLimit]
	}
}

func (r *Reconciler) applyDeleted(podID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, podID)
	delete(r.pending, podID)
}

// MarkDeclared applies the caller's own successful declaration without
// waiting for the broadcast: the pod leaves the active view at once and the
// refetched pending entry lands before (or merges with) the event's.
func (r *Reconciler) MarkDeclared(ctx context.Context, podID int) error {
	return r.applyWinnerDeclared(ctx, podID)
}

// refetch loads a pod through singleflight; a not-found pod resolves to nil
// rather than an error, because an event may outlive its pod.
func (r *Reconciler) refetch(ctx context.Context, podID int) (*models.Pod, error) {
	v, err, _ := r.sf.Do(fmt.Sprintf("pod:%d", podID), func() (interface{}, error) {
		return r.fetcher.FetchPod(ctx, podID)
	})
	if err != nil {
		r.logger.Warn("pod refetch failed",
			slog.Int("pod_id", podID),
			slog.String("error", err.Error()))
		return nil, err
	}
	pod, _ := v.(*models.Pod)
	return pod, nil
}

// ActivePods returns the active view sorted by pod id.
func (r *Reconciler) ActivePods() []*models.Pod {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedByID(r.active)
}

// PendingPods returns the pending-confirmation view sorted by pod id.
func (r *Reconciler) PendingPods() []*models.Pod {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedByID(r.pending)
}

// RecentCompleted returns the newest completed pods, newest first.
func (r *Reconciler) RecentCompleted() []*models.Pod {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Pod, len(r.recent))
	copy(out, r.recent)
	return out
}

func sortedByID(pods map[int]*models.Pod) []*models.Pod {
	out := make([]*models.Pod, 0, len(pods))
	for _, pod := range pods {
		out = append(out, pod)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
