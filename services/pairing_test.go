package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/Dosada05/escalation-league/models"
)

func TestCalculatePodDistribution(t *testing.T) {
	cases := []struct {
		players int
		want    PodDistribution
	}{
		{3, PodDistribution{PodsOf4: 0, PodsOf3: 1, Leftover: 0}},
		{4, PodDistribution{PodsOf4: 1, PodsOf3: 0, Leftover: 0}},
		{5, PodDistribution{PodsOf4: 1, PodsOf3: 0, Leftover: 1}},
		{6, PodDistribution{PodsOf4: 0, PodsOf3: 2, Leftover: 0}},
		{7, PodDistribution{PodsOf4: 1, PodsOf3: 1, Leftover: 0}},
		{8, PodDistribution{PodsOf4: 2, PodsOf3: 0, Leftover: 0}},
		{10, PodDistribution{PodsOf4: 1, PodsOf3: 2, Leftover: 0}},
		{11, PodDistribution{PodsOf4: 2, PodsOf3: 1, Leftover: 0}},
		{2, PodDistribution{PodsOf4: 0, PodsOf3: 0, Leftover: 2}},
	}
	for _, tc := range cases {
		if got := CalculatePodDistribution(tc.players); got != tc.want {
			t.Errorf("%d players: expected %+v, got %+v", tc.players, tc.want, got)
		}
	}
}

func newPairingEnv(t *testing.T) (*fakePodStore, *fakeUserStore, PairingService) {
	t.Helper()
	pods := newFakePodStore()
	users := newFakeUserStore()
	for i := 1; i <= 12; i++ {
		users.addUser(&models.User{ID: i, FirstName: fmt.Sprintf("Player%d", i), Role: models.RolePlayer})
	}
	return pods, users, NewPairingService(pods, users)
}

// seedHistory records one completed pod with the given roster and winner.
func seedHistory(t *testing.T, pods *fakePodStore, playerIDs []int, winnerID int) {
	t.Helper()
	ctx := context.Background()

	pod := &models.Pod{LeagueID: testLeagueID, CreatorID: playerIDs[0], Status: models.PodStatusComplete}
	if err := pods.Create(ctx, nil, pod); err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, playerID := range playerIDs {
		result := models.PlayerResultLoss
		if playerID == winnerID {
			result = models.PlayerResultWin
		}
		p := models.Participant{
			PodID:     pod.ID,
			PlayerID:  playerID,
			FirstName: fmt.Sprintf("Player%d", playerID),
			Result:    &result,
			Confirmed: true,
		}
		if err := pods.AddParticipant(ctx, nil, &p); err != nil {
			t.Fatalf("AddParticipant: %v", err)
		}
	}
}

func TestLeagueMatchupMatrix(t *testing.T) {
	pods, _, svc := newPairingEnv(t)
	seedHistory(t, pods, []int{1, 2, 3}, 1)
	seedHistory(t, pods, []int{1, 2, 4}, 2)

	matrix, err := svc.LeagueMatchupMatrix(context.Background(), testLeagueID)
	if err != nil {
		t.Fatalf("LeagueMatchupMatrix: %v", err)
	}

	if got := matrix.PairGames(1, 2); got != 2 {
		t.Errorf("pair 1-2: expected 2 games, got %d", got)
	}
	if got := matrix.PairGames(2, 1); got != 2 {
		t.Errorf("pair counts must be symmetric, got %d", got)
	}
	if got := matrix.PairGames(3, 4); got != 0 {
		t.Errorf("pair 3-4 never met, got %d", got)
	}
	if len(matrix.Players) != 4 {
		t.Errorf("expected 4 known players, got %d", len(matrix.Players))
	}
}

func TestOpponentMatchups(t *testing.T) {
	pods, _, svc := newPairingEnv(t)
	// Игрок 2 трижды обыгрывает игрока 1; игрок 1 один раз обыгрывает 3.
	seedHistory(t, pods, []int{1, 2, 3}, 2)
	seedHistory(t, pods, []int{1, 2, 4}, 2)
	seedHistory(t, pods, []int{1, 2, 3}, 2)
	seedHistory(t, pods, []int{1, 3, 4}, 1)

	matchups, err := svc.OpponentMatchups(context.Background(), 1, testLeagueID)
	if err != nil {
		t.Fatalf("OpponentMatchups: %v", err)
	}

	if matchups.Nemesis == nil || matchups.Nemesis.OpponentID != 2 {
		t.Fatalf("expected nemesis 2, got %+v", matchups.Nemesis)
	}
	if matchups.Nemesis.LossesAgainst != 3 {
		t.Errorf("nemesis losses: expected 3, got %d", matchups.Nemesis.LossesAgainst)
	}
	if matchups.Victim == nil || matchups.Victim.OpponentID != 3 {
		t.Fatalf("expected victim 3, got %+v", matchups.Victim)
	}
	if matchups.Victim.WinsAgainst != 1 {
		t.Errorf("victim wins: expected 1, got %d", matchups.Victim.WinsAgainst)
	}
}

func TestSuggestPodsPrefersFreshOpponents(t *testing.T) {
	pods, _, svc := newPairingEnv(t)
	// Игроки 1-2-3 уже дважды играли вместе; 4-5-6 - чистая история.
	seedHistory(t, pods, []int{1, 2, 3}, 1)
	seedHistory(t, pods, []int{1, 2, 3}, 2)

	suggestion, err := svc.SuggestPods(context.Background(), testLeagueID, []int{1, 2, 3, 4, 5, 6})
	if err != nil {
		t.Fatalf("SuggestPods: %v", err)
	}

	if len(suggestion.Pods) != 2 {
		t.Fatalf("expected 2 pods of 3, got %d", len(suggestion.Pods))
	}
	if len(suggestion.Leftover) != 0 {
		t.Errorf("expected no leftover, got %d", len(suggestion.Leftover))
	}

	// Суммарная «несвежесть» предложенных подов должна быть меньше, чем у
	// повторения исторических составов (2+2+2=6).
	totalScore := 0
	for _, pod := range suggestion.Pods {
		totalScore += pod.Score
	}
	if totalScore >= 6 {
		t.Errorf("greedy split should beat replaying history, total score %d", totalScore)
	}
}

func TestSuggestPodsTooFewPlayers(t *testing.T) {
	_, _, svc := newPairingEnv(t)

	suggestion, err := svc.SuggestPods(context.Background(), testLeagueID, []int{1, 2})
	if err != nil {
		t.Fatalf("SuggestPods: %v", err)
	}
	if len(suggestion.Pods) != 0 {
		t.Errorf("expected no pods, got %d", len(suggestion.Pods))
	}
	if len(suggestion.Leftover) != 2 {
		t.Errorf("expected both players leftover, got %d", len(suggestion.Leftover))
	}
}

func TestSuggestPodsSevenPlayers(t *testing.T) {
	_, _, svc := newPairingEnv(t)

	suggestion, err := svc.SuggestPods(context.Background(), testLeagueID, []int{1, 2, 3, 4, 5, 6, 7})
	if err != nil {
		t.Fatalf("SuggestPods: %v", err)
	}
	if len(suggestion.Pods) != 2 {
		t.Fatalf("expected 2 pods, got %d", len(suggestion.Pods))
	}
	if suggestion.Pods[0].Size != 4 || suggestion.Pods[1].Size != 3 {
		t.Errorf("expected sizes 4 and 3, got %d and %d", suggestion.Pods[0].Size, suggestion.Pods[1].Size)
	}
	if len(suggestion.Leftover) != 0 {
		t.Errorf("expected no leftover, got %d", len(suggestion.Leftover))
	}

	seen := make(map[int]bool)
	for _, pod := range suggestion.Pods {
		for _, player := range pod.Players {
			if seen[player.ID] {
				t.Errorf("player %d suggested twice", player.ID)
			}
			seen[player.ID] = true
		}
	}
}
