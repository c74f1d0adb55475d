package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/escalation-league/models"
	"github.com/Dosada05/escalation-league/repositories"
)

// Подбор составов: матрица встреч по завершённым подам лиги и жадное
// предложение свежих составов для отметившихся игроков.

// PodDistribution is the split of N players into 4- and 3-player pods with
// the fewest players left out.
type PodDistribution struct {
	PodsOf4  int `json:"pods_of_4"`
	PodsOf3  int `json:"pods_of_3"`
	Leftover int `json:"leftover"`
}

// CalculatePodDistribution prefers 4-player pods and falls back to 3-player
// pods to minimize the leftover.
func CalculatePodDistribution(totalPlayers int) PodDistribution {
	best := PodDistribution{Leftover: totalPlayers}
	for podsOf4 := totalPlayers / 4; podsOf4 >= 0; podsOf4-- {
		remaining := totalPlayers - podsOf4*4
		podsOf3 := remaining / 3
		leftover := remaining - podsOf3*3
		if leftover < best.Leftover {
			best = PodDistribution{PodsOf4: podsOf4, PodsOf3: podsOf3, Leftover: leftover}
		}
		if leftover == 0 {
			break
		}
	}
	return best
}

// MatchupMatrix counts how many completed pods each pair of league players
// has shared.
type MatchupMatrix struct {
	Players []models.LeagueMember `json:"players"`
	Counts  map[int]map[int]int   `json:"matrix"`
}

// PairGames returns the number of completed pods p1 and p2 shared.
func (m *MatchupMatrix) PairGames(p1, p2 int) int {
	if row, ok := m.Counts[p1]; ok {
		return row[p2]
	}
	return 0
}

// Matchup is one head-to-head record from a player's perspective.
type Matchup struct {
	OpponentID    int    `json:"opponent_id"`
	FirstName     string `json:"firstname"`
	LastName      string `json:"lastname"`
	GamesPlayed   int    `json:"games_played"`
	WinsAgainst   int    `json:"wins_against"`
	LossesAgainst int    `json:"losses_against"`
	Draws         int    `json:"draws"`
}

// OpponentMatchups summarizes a player's history: the nemesis beats them the
// most, the victim is beaten by them the most.
type OpponentMatchups struct {
	Nemesis  *Matchup  `json:"nemesis"`
	Victim   *Matchup  `json:"victim"`
	Matchups []Matchup `json:"matchups"`
}

// PodPairing is one pair inside a suggested pod with its prior game count.
type PodPairing struct {
	Player1       int `json:"player1"`
	Player2       int `json:"player2"`
	PreviousGames int `json:"previous_games"`
}

type SuggestedPod struct {
	Players  []models.LeagueMember `json:"players"`
	Size     int                   `json:"size"`
	Score    int                   `json:"score"`
	Pairings []PodPairing          `json:"pairings"`
}

type PodSuggestion struct {
	Pods         []SuggestedPod        `json:"pods"`
	Leftover     []models.LeagueMember `json:"leftover"`
	TotalPlayers int                   `json:"total_players"`
	Distribution PodDistribution       `json:"distribution"`
}

type PairingService interface {
	LeagueMatchupMatrix(ctx context.Context, leagueID int) (*MatchupMatrix, error)
	OpponentMatchups(ctx context.Context, playerID, leagueID int) (*OpponentMatchups, error)
	SuggestPods(ctx context.Context, leagueID int, attendeeIDs []int) (*PodSuggestion, error)
}

type pairingService struct {
	podRepo  repositories.PodRepository
	userRepo repositories.UserRepository
}

func NewPairingService(podRepo repositories.PodRepository, userRepo repositories.UserRepository) PairingService {
	return &pairingService{podRepo: podRepo, userRepo: userRepo}
}

// completedPods loads every completed pod of the league with its roster.
func (s *pairingService) completedPods(ctx context.Context, leagueID int) ([]*models.Pod, error) {
	status := models.PodStatusComplete
	pods, err := s.podRepo.ListByLeague(ctx, leagueID, &status)
	if err != nil {
		return nil, err
	}

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

func (s *pairingService) LeagueMatchupMatrix(ctx context.Context, leagueID int) (*MatchupMatrix, error) {
	pods, err := s.completedPods(ctx, leagueID)
	if err != nil {
		return nil, err
	}

	counts := make(map[int]map[int]int)
	playerSet := make(map[int]models.LeagueMember)
	bump := func(p1, p2 int) {
		if counts[p1] == nil {
			counts[p1] = make(map[int]int)
		}
		counts[p1][p2]++
	}

	for _, pod := range pods {
		for i := range pod.Participants {
			a := &pod.Participants[i]
			if _, ok := playerSet[a.PlayerID]; !ok {
				playerSet[a.PlayerID] = models.LeagueMember{
					ID:        a.PlayerID,
					FirstName: a.FirstName,
					LastName:  a.LastName,
				}
			}
			for j := i + 1; j < len(pod.Participants); j++ {
				b := &pod.Participants[j]
				bump(a.PlayerID, b.PlayerID)
				bump(b.PlayerID, a.PlayerID)
			}
		}
	}

	players := make([]models.LeagueMember, 0, len(playerSet))
	for _, p := range playerSet {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })

	return &MatchupMatrix{Players: players, Counts: counts}, nil
}

func (s *pairingService) OpponentMatchups(ctx context.Context, playerID, leagueID int) (*OpponentMatchups, error) {
	pods, err := s.completedPods(ctx, leagueID)
	if err != nil {
		return nil, err
	}

	matchupMap := make(map[int]*Matchup)
	for _, pod := range pods {
		player := pod.ParticipantByID(playerID)
		if player == nil {
			continue
		}
		for i := range pod.Participants {
			opp := &pod.Participants[i]
			if opp.PlayerID == playerID {
				continue
			}
			m, ok := matchupMap[opp.PlayerID]
			if !ok {
				m = &Matchup{
					OpponentID: opp.PlayerID,
					FirstName:  opp.FirstName,
					LastName:   opp.LastName,
				}
				matchupMap[opp.PlayerID] = m
			}
			m.GamesPlayed++
			switch {
			case player.Result != nil && *player.Result == models.PlayerResultWin:
				m.WinsAgainst++
			case opp.Result != nil && *opp.Result == models.PlayerResultWin:
				m.LossesAgainst++
			case player.Result != nil && *player.Result == models.PlayerResultDraw:
				m.Draws++
			}
		}
	}

	matchups := make([]Matchup, 0, len(matchupMap))
	for _, m := range matchupMap {
		matchups = append(matchups, *m)
	}
	sort.Slice(matchups, func(i, j int) bool { return matchups[i].OpponentID < matchups[j].OpponentID })

	result := &OpponentMatchups{Matchups: matchups}
	for i := range matchups {
		m := &matchups[i]
		if m.LossesAgainst > 0 && (result.Nemesis == nil || m.LossesAgainst > result.Nemesis.LossesAgainst) {
			result.Nemesis = m
		}
		if m.WinsAgainst > 0 && (result.Victim == nil || m.WinsAgainst > result.Victim.WinsAgainst) {
			result.Victim = m
		}
	}
	return result, nil
}

// startingPairLimit bounds how many fresh starting pairs the greedy builder
// explores per pod.
const startingPairLimit = 10

// SuggestPods proposes pod groupings for the checked-in players that
// minimize repeated matchups. Greedy, not optimal: each pod starts from one
// of the freshest pairs and grows by the candidate that keeps the pod's
// total prior-game count lowest.
func (s *pairingService) SuggestPods(ctx context.Context, leagueID int, attendeeIDs []int) (*PodSuggestion, error) {
	seen := make(map[int]bool, len(attendeeIDs))
	for _, id := range attendeeIDs {
		if seen[id] {
			return nil, fmt.Errorf("%w: duplicate attendee %d", ErrValidationFailed, id)
		}
		seen[id] = true
	}

	members := make(map[int]models.LeagueMember, len(attendeeIDs))
	for _, id := range attendeeIDs {
		user, err := s.userRepo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repositories.ErrUserNotFound) {
				return nil, fmt.Errorf("%w: attendee %d", ErrUserNotFound, id)
			}
			return nil, err
		}
		members[id] = models.LeagueMember{ID: user.ID, FirstName: user.FirstName, LastName: user.LastName}
	}

	suggestion := &PodSuggestion{
		Pods:         []SuggestedPod{},
		Leftover:     []models.LeagueMember{},
		TotalPlayers: len(attendeeIDs),
		Distribution: CalculatePodDistribution(len(attendeeIDs)),
	}
	if len(attendeeIDs) < models.MinPodPlayers {
		for _, id := range attendeeIDs {
			suggestion.Leftover = append(suggestion.Leftover, members[id])
		}
		return suggestion, nil
	}

	matrix, err := s.LeagueMatchupMatrix(ctx, leagueID)
	if err != nil {
		return nil, err
	}

	podSizes := make([]int, 0, suggestion.Distribution.PodsOf4+suggestion.Distribution.PodsOf3)
	for i := 0; i < suggestion.Distribution.PodsOf4; i++ {
		podSizes = append(podSizes, 4)
	}
	for i := 0; i < suggestion.Distribution.PodsOf3; i++ {
		podSizes = append(podSizes, 3)
	}

	podScore := func(ids []int) int {
		score := 0
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				score += matrix.PairGames(ids[i], ids[j])
			}
		}
		return score
	}

	remaining := append([]int(nil), attendeeIDs...)
	for _, targetSize := range podSizes {
		if len(remaining) < targetSize {
			break
		}
		bestPod := buildBestPod(remaining, targetSize, matrix, podScore)
		if bestPod == nil {
			break
		}

		pod := SuggestedPod{
			Size:  targetSize,
			Score: podScore(bestPod),
		}
		for _, id := range bestPod {
			pod.Players = append(pod.Players, members[id])
		}
		for i := 0; i < len(bestPod); i++ {
			for j := i + 1; j < len(bestPod); j++ {
				pod.Pairings = append(pod.Pairings, PodPairing{
					Player1:       bestPod[i],
					Player2:       bestPod[j],
					PreviousGames: matrix.PairGames(bestPod[i], bestPod[j]),
				})
			}
		}
		suggestion.Pods = append(suggestion.Pods, pod)

		picked := make(map[int]bool, len(bestPod))
		for _, id := range bestPod {
			picked[id] = true
		}
		next := remaining[:0]
		for _, id := range remaining {
			if !picked[id] {
				next = append(next, id)
			}
		}
		remaining = next
	}

	for _, id := range remaining {
		suggestion.Leftover = append(suggestion.Leftover, members[id])
	}
	return suggestion, nil
}

func buildBestPod(remaining []int, targetSize int, matrix *MatchupMatrix, podScore func([]int) int) []int {
	type pair struct {
		a, b  int
		score int
	}
	pairs := make([]pair, 0, len(remaining)*(len(remaining)-1)/2)
	for i := 0; i < len(remaining); i++ {
		for j := i + 1; j < len(remaining); j++ {
			pairs = append(pairs, pair{
				a:     remaining[i],
				b:     remaining[j],
				score: matrix.PairGames(remaining[i], remaining[j]),
			})
		}
	}
	// Стабильная сортировка по id, чтобы при равной свежести результат был
	// детерминированным.
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].score != pairs[j].score {
			return pairs[i].score < pairs[j].score
		}
		if pairs[i].a != pairs[j].a {
			return pairs[i].a < pairs[j].a
		}
		return pairs[i].b < pairs[j].b
	})

	limit := startingPairLimit
	if limit > len(pairs) {
		limit = len(pairs)
	}

	var bestPod []int
	bestScore := -1
	for _, start := range pairs[:limit] {
		pod := []int{start.a, start.b}
		inPod := map[int]bool{start.a: true, start.b: true}

		for len(pod) < targetSize {
			bestAddition := 0
			bestAdditionScore := -1
			for _, candidate := range remaining {
				if inPod[candidate] {
					continue
				}
				score := podScore(append(append([]int(nil), pod...), candidate))
				if bestAdditionScore < 0 || score < bestAdditionScore {
					bestAdditionScore = score
					bestAddition = candidate
				}
			}
			if bestAdditionScore < 0 {
				break
			}
			pod = append(pod, bestAddition)
			inPod[bestAddition] = true
		}
		if len(pod) < targetSize {
			continue
		}

		score := podScore(pod)
		if bestScore < 0 || score < bestScore {
			bestScore = score
			bestPod = pod
		}
	}
	return bestPod
}
