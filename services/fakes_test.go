package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/escalation-league/models"
	"github.com/Dosada05/escalation-league/realtime"
	"github.com/Dosada05/escalation-league/repositories"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTxRunner executes the function directly; the in-memory stores guard
// themselves with mutexes instead of transactions. Pod row locks taken
// during the function are released when it returns, the way commit or
// rollback releases FOR UPDATE locks.
type fakeTxRunner struct {
	store *fakePodStore
}

func (r fakeTxRunner) WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	err := fn(nil)
	if r.store != nil {
		r.store.releaseRowLocks()
	}
	return err
}

// fakePodStore is an in-memory PodRepository with the same conditional-write
// semantics as the Postgres implementation: every CAS happens under one lock.
type fakePodStore struct {
	mu           sync.Mutex
	nextID       int
	pods         map[int]*models.Pod
	participants map[int][]models.Participant

	// readBarrier, when set, runs after a GetByID snapshot is taken and
	// before it is returned. Lets tests line up racing readers.
	readBarrier func()

	rowLockMu sync.Mutex
	rowLocks  map[int]*sync.Mutex
	heldLocks []*sync.Mutex
}

func newFakePodStore() *fakePodStore {
	return &fakePodStore{
		nextID:       1,
		pods:         make(map[int]*models.Pod),
		participants: make(map[int][]models.Participant),
		rowLocks:     make(map[int]*sync.Mutex),
	}
}

// lockRow models SELECT ... FOR UPDATE: the second transaction touching the
// same pod blocks here until the first one ends.
func (s *fakePodStore) lockRow(podID int) {
	s.rowLockMu.Lock()
	lock, ok := s.rowLocks[podID]
	if !ok {
		lock = &sync.Mutex{}
		s.rowLocks[podID] = lock
	}
	s.rowLockMu.Unlock()

	lock.Lock()
	s.rowLockMu.Lock()
	s.heldLocks = append(s.heldLocks, lock)
	s.rowLockMu.Unlock()
}

func (s *fakePodStore) releaseRowLocks() {
	s.rowLockMu.Lock()
	held := s.heldLocks
	s.heldLocks = nil
	s.rowLockMu.Unlock()
	for _, lock := range held {
		lock.Unlock()
	}
}

func copyPod(pod *models.Pod) *models.Pod {
	cp := *pod
	if pod.Result != nil {
		r := *pod.Result
		cp.Result = &r
	}
	cp.Participants = nil
	return &cp
}

func copyParticipants(src []models.Participant) []models.Participant {
	out := make([]models.Participant, len(src))
	for i, p := range src {
		out[i] = p
		if p.Result != nil {
			r := *p.Result
			out[i].Result = &r
		}
		if p.TurnOrder != nil {
			v := *p.TurnOrder
			out[i].TurnOrder = &v
		}
		if p.EloChange != nil {
			v := *p.EloChange
			out[i].EloChange = &v
		}
		if p.EloBefore != nil {
			v := *p.EloBefore
			out[i].EloBefore = &v
		}
	}
	return out
}

func (s *fakePodStore) Create(ctx context.Context, exec repositories.SQLExecutor, pod *models.Pod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pod.ID = s.nextID
	s.nextID++
	pod.CreatedAt = time.Now()
	s.pods[pod.ID] = copyPod(pod)
	s.participants[pod.ID] = nil
	return nil
}

func (s *fakePodStore) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Pod, error) {
	s.mu.Lock()
	stored, ok := s.pods[id]
	var snapshot *models.Pod
	if ok {
		snapshot = copyPod(stored)
		snapshot.Participants = copyParticipants(s.participants[id])
	}
	barrier := s.readBarrier
	s.mu.Unlock()

	if !ok {
		return nil, repositories.ErrPodNotFound
	}
	if barrier != nil {
		barrier()
	}
	return snapshot, nil
}

func (s *fakePodStore) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Pod, error) {
	s.lockRow(id)
	return s.GetByID(ctx, exec, id)
}

func (s *fakePodStore) ListByLeague(ctx context.Context, leagueID int, status *models.PodStatus) ([]*models.Pod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Pod, 0)
	for _, pod := range s.pods {
		if pod.LeagueID != leagueID {
			continue
		}
		if status != nil && pod.Status != *status {
			continue
		}
		out = append(out, copyPod(pod))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakePodStore) ListOpenFull(ctx context.Context) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0)
	for id, pod := range s.pods {
		if pod.Status == models.PodStatusOpen && len(s.participants[id]) >= models.MaxPodPlayers {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

func (s *fakePodStore) AddParticipant(ctx context.Context, exec repositories.SQLExecutor, participant *models.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pods[participant.PodID]; !ok {
		return repositories.ErrPodPlayerInvalid
	}
	existing := s.participants[participant.PodID]
	for _, p := range existing {
		if p.PlayerID == participant.PlayerID {
			return repositories.ErrPodPlayerDuplicate
		}
	}
	if len(existing) >= models.MaxPodPlayers {
		return repositories.ErrPodCapacityReached
	}
	s.participants[participant.PodID] = append(existing, *participant)
	return nil
}

func (s *fakePodStore) GetParticipants(ctx context.Context, exec repositories.SQLExecutor, podID int) ([]models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyParticipants(s.participants[podID]), nil
}

func (s *fakePodStore) RemoveParticipant(ctx context.Context, exec repositories.SQLExecutor, podID, playerID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.participants[podID]
	for i, p := range existing {
		if p.PlayerID == playerID {
			s.participants[podID] = append(existing[:i:i], existing[i+1:]...)
			return nil
		}
	}
	return repositories.ErrPodParticipantNotFound
}

func (s *fakePodStore) ReplaceParticipants(ctx context.Context, exec repositories.SQLExecutor, podID int, participants []models.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pods[podID]; !ok {
		return repositories.ErrPodNotFound
	}
	replaced := copyParticipants(participants)
	for i := range replaced {
		replaced[i].PodID = podID
	}
	s.participants[podID] = replaced
	return nil
}

func (s *fakePodStore) UpdateStatusIf(ctx context.Context, exec repositories.SQLExecutor, podID int, from, to models.PodStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pod, ok := s.pods[podID]
	if !ok {
		return repositories.ErrPodStatusConflict
	}
	if pod.Status != from {
		return repositories.ErrPodStatusConflict
	}
	pod.Status = to
	return nil
}

func (s *fakePodStore) ClaimResult(ctx context.Context, exec repositories.SQLExecutor, podID int, result models.PodResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pod, ok := s.pods[podID]
	if !ok {
		return repositories.ErrPodResultAlreadyClaimed
	}
	if pod.Status != models.PodStatusActive || pod.Result != nil {
		return repositories.ErrPodResultAlreadyClaimed
	}
	r := result
	pod.Result = &r
	pod.Status = models.PodStatusPending
	return nil
}

func (s *fakePodStore) SetResult(ctx context.Context, exec repositories.SQLExecutor, podID int, result *models.PodResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pod, ok := s.pods[podID]
	if !ok {
		return repositories.ErrPodNotFound
	}
	if result == nil {
		pod.Result = nil
	} else {
		r := *result
		pod.Result = &r
	}
	return nil
}

func (s *fakePodStore) SetParticipantResults(ctx context.Context, exec repositories.SQLExecutor, podID int, winnerID *int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	participants := s.participants[podID]
	for i := range participants {
		var r models.PlayerResult
		switch {
		case winnerID == nil:
			r = models.PlayerResultDraw
		case participants[i].PlayerID == *winnerID:
			r = models.PlayerResultWin
		default:
			r = models.PlayerResultLoss
		}
		participants[i].Result = &r
	}
	return nil
}

func (s *fakePodStore) ConfirmParticipant(ctx context.Context, exec repositories.SQLExecutor, podID, playerID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	participants := s.participants[podID]
	for i := range participants {
		if participants[i].PlayerID == playerID {
			if participants[i].Confirmed {
				return repositories.ErrPodParticipantNotFound
			}
			participants[i].Confirmed = true
			return nil
		}
	}
	return repositories.ErrPodParticipantNotFound
}

func (s *fakePodStore) CountUnconfirmed(ctx context.Context, exec repositories.SQLExecutor, podID int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, p := range s.participants[podID] {
		if !p.Confirmed {
			count++
		}
	}
	return count, nil
}

func (s *fakePodStore) ForceCompleteParticipants(ctx context.Context, exec repositories.SQLExecutor, podID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	participants := s.participants[podID]
	for i := range participants {
		if participants[i].Result == nil {
			loss := models.PlayerResultLoss
			participants[i].Result = &loss
		}
		participants[i].Confirmed = true
	}
	return nil
}

func (s *fakePodStore) SetParticipantElo(ctx context.Context, exec repositories.SQLExecutor, podID, playerID, eloChange, eloBefore int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	participants := s.participants[podID]
	for i := range participants {
		if participants[i].PlayerID == playerID {
			change, before := eloChange, eloBefore
			participants[i].EloChange = &change
			participants[i].EloBefore = &before
			return nil
		}
	}
	return repositories.ErrPodParticipantNotFound
}

func (s *fakePodStore) ClearParticipantElo(ctx context.Context, exec repositories.SQLExecutor, podID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	participants := s.participants[podID]
	for i := range participants {
		participants[i].EloChange = nil
		participants[i].EloBefore = nil
	}
	return nil
}

func (s *fakePodStore) Delete(ctx context.Context, exec repositories.SQLExecutor, podID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pods[podID]; !ok {
		return repositories.ErrPodNotFound
	}
	delete(s.pods, podID)
	delete(s.participants, podID)
	return nil
}

// fakeLeagueStore keeps leagues and active memberships in maps.
type fakeLeagueStore struct {
	mu      sync.Mutex
	leagues map[int]*models.League
	members map[int]map[int]bool // leagueID -> userID -> active
}

func newFakeLeagueStore() *fakeLeagueStore {
	return &fakeLeagueStore{
		leagues: make(map[int]*models.League),
		members: make(map[int]map[int]bool),
	}
}

func (s *fakeLeagueStore) addLeague(league *models.League) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leagues[league.ID] = league
	if s.members[league.ID] == nil {
		s.members[league.ID] = make(map[int]bool)
	}
}

func (s *fakeLeagueStore) addMember(leagueID, userID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.members[leagueID] == nil {
		s.members[leagueID] = make(map[int]bool)
	}
	s.members[leagueID][userID] = true
}

func (s *fakeLeagueStore) GetByID(ctx context.Context, id int) (*models.League, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	league, ok := s.leagues[id]
	if !ok {
		return nil, repositories.ErrLeagueNotFound
	}
	cp := *league
	return &cp, nil
}

func (s *fakeLeagueStore) IsMember(ctx context.Context, userID, leagueID int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.members[leagueID][userID], nil
}

func (s *fakeLeagueStore) ListMembers(ctx context.Context, leagueID int) ([]models.LeagueMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.LeagueMember, 0)
	for userID := range s.members[leagueID] {
		out = append(out, models.LeagueMember{ID: userID})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeUserStore struct {
	mu    sync.Mutex
	users map[int]*models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[int]*models.User)}
}

func (s *fakeUserStore) addUser(user *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
}

func (s *fakeUserStore) GetByID(ctx context.Context, id int) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

// fakeLedger records which pods had stats applied or reversed.
type fakeLedger struct {
	mu       sync.Mutex
	applied  []int
	reversed []int
}

func (l *fakeLedger) Apply(ctx context.Context, exec repositories.SQLExecutor, pod *models.Pod) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.applied = append(l.applied, pod.ID)
	return nil
}

func (l *fakeLedger) Reverse(ctx context.Context, exec repositories.SQLExecutor, pod *models.Pod) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reversed = append(l.reversed, pod.ID)
	return nil
}

func (l *fakeLedger) appliedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.applied)
}

func (l *fakeLedger) reversedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.reversed)
}

// fakeBroadcaster collects broadcast events for assertions.
type fakeBroadcaster struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (b *fakeBroadcaster) BroadcastToLeague(leagueID int, event realtime.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *fakeBroadcaster) eventsOfType(t realtime.EventType) []realtime.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]realtime.Event, 0)
	for _, ev := range b.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// fakeStatsStore implements StatsRepository over plain maps, for the ledger
// tests.
type fakeStatsStore struct {
	mu         sync.Mutex
	users      map[int]*models.User
	userElo    map[int]int
	leagueRows map[[2]int]*models.UserLeague // [userID, leagueID]
}

func newFakeStatsStore() *fakeStatsStore {
	return &fakeStatsStore{
		users:      make(map[int]*models.User),
		userElo:    make(map[int]int),
		leagueRows: make(map[[2]int]*models.UserLeague),
	}
}

func (s *fakeStatsStore) seedUser(userID, elo int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = &models.User{ID: userID}
	s.userElo[userID] = elo
}

func (s *fakeStatsStore) seedLeagueRow(userID, leagueID, elo int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leagueRows[[2]int{userID, leagueID}] = &models.UserLeague{
		UserID:    userID,
		LeagueID:  leagueID,
		EloRating: elo,
	}
}

func (s *fakeStatsStore) IncrementUserStats(ctx context.Context, exec repositories.SQLExecutor, userID int, delta repositories.StatsDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return repositories.ErrStatsUserNotFound
	}
	user.Wins += delta.Wins
	user.Losses += delta.Losses
	user.Draws += delta.Draws
	return nil
}

func (s *fakeStatsStore) IncrementUserLeagueStats(ctx context.Context, exec repositories.SQLExecutor, userID, leagueID int, delta repositories.StatsDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.leagueRows[[2]int{userID, leagueID}]
	if !ok {
		return repositories.ErrStatsUserLeagueNotFound
	}
	row.LeagueWins += delta.Wins
	row.LeagueLosses += delta.Losses
	row.LeagueDraws += delta.Draws
	row.TotalPoints += delta.Points
	return nil
}

func (s *fakeStatsStore) AdjustUserElo(ctx context.Context, exec repositories.SQLExecutor, userID, eloDelta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return repositories.ErrStatsUserNotFound
	}
	s.userElo[userID] += eloDelta
	return nil
}

func (s *fakeStatsStore) AdjustUserLeagueElo(ctx context.Context, exec repositories.SQLExecutor, userID, leagueID, eloDelta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.leagueRows[[2]int{userID, leagueID}]
	if !ok {
		return repositories.ErrStatsUserLeagueNotFound
	}
	row.EloRating += eloDelta
	return nil
}

func (s *fakeStatsStore) GetUserAggregates(ctx context.Context, exec repositories.SQLExecutor, userID int) (int, int, int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return 0, 0, 0, 0, repositories.ErrStatsUserNotFound
	}
	return user.Wins, user.Losses, user.Draws, s.userElo[userID], nil
}

func (s *fakeStatsStore) leagueRow(userID, leagueID int) models.UserLeague {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.leagueRows[[2]int{userID, leagueID}]
}

func (s *fakeStatsStore) userRow(userID int) (models.User, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.users[userID], s.userElo[userID]
}
