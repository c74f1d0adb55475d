package services

import (
	"context"
	"errors"
	"testing"

	"github.com/Dosada05/escalation-league/models"
)

func newLedgerEnv(t *testing.T) (*fakeStatsStore, *fakePodStore, StatsLedger) {
	t.Helper()

	leagues := newFakeLeagueStore()
	leagues.addLeague(&models.League{
		ID:            testLeagueID,
		PointsPerWin:  4,
		PointsPerLoss: 1,
		PointsPerDraw: 1,
	})

	stats := newFakeStatsStore()
	pods := newFakePodStore()
	ledger := NewStatsService(leagues, stats, pods, discardLogger())
	return stats, pods, ledger
}

func playerResult(r models.PlayerResult) *models.PlayerResult {
	return &r
}

func seedCompletedPod(t *testing.T, pods *fakePodStore, stats *fakeStatsStore, participants []models.Participant) *models.Pod {
	t.Helper()

	pod := &models.Pod{LeagueID: testLeagueID, CreatorID: participants[0].PlayerID, Status: models.PodStatusComplete}
	if err := pods.Create(context.Background(), nil, pod); err != nil {
		t.Fatalf("Create: %v", err)
	}
	for i := range participants {
		participants[i].PodID = pod.ID
		if err := pods.AddParticipant(context.Background(), nil, &participants[i]); err != nil {
			t.Fatalf("AddParticipant: %v", err)
		}
		stats.seedUser(participants[i].PlayerID, StartingElo)
		stats.seedLeagueRow(participants[i].PlayerID, testLeagueID, StartingElo)
	}
	pod.Participants = participants
	return pod
}

func seat(n int) *int { return &n }

func TestLedgerApplyWinLoss(t *testing.T) {
	stats, pods, ledger := newLedgerEnv(t)
	pod := seedCompletedPod(t, pods, stats, []models.Participant{
		{PlayerID: 1, Result: playerResult(models.PlayerResultWin), TurnOrder: seat(1)},
		{PlayerID: 2, Result: playerResult(models.PlayerResultLoss), TurnOrder: seat(2)},
		{PlayerID: 3, Result: playerResult(models.PlayerResultLoss), TurnOrder: seat(3)},
	})

	if err := ledger.Apply(context.Background(), nil, pod); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	winner, winnerElo := stats.userRow(1)
	if winner.Wins != 1 || winner.Losses != 0 || winner.Draws != 0 {
		t.Errorf("winner counters: got %d/%d/%d", winner.Wins, winner.Losses, winner.Draws)
	}
	if winnerElo <= StartingElo {
		t.Errorf("winner elo should rise, got %d", winnerElo)
	}

	loser, loserElo := stats.userRow(2)
	if loser.Losses != 1 {
		t.Errorf("loser should have 1 loss, got %d", loser.Losses)
	}
	if loserElo >= StartingElo {
		t.Errorf("loser elo should fall, got %d", loserElo)
	}

	winnerRow := stats.leagueRow(1, testLeagueID)
	if winnerRow.TotalPoints != 4 {
		t.Errorf("winner points: expected 4, got %d", winnerRow.TotalPoints)
	}
	loserRow := stats.leagueRow(2, testLeagueID)
	if loserRow.TotalPoints != 1 {
		t.Errorf("loser points: expected 1, got %d", loserRow.TotalPoints)
	}

	// История эло записана для точного отката.
	participants, _ := pods.GetParticipants(context.Background(), nil, pod.ID)
	for _, p := range participants {
		if p.EloChange == nil || p.EloBefore == nil {
			t.Errorf("player %d: missing elo history", p.PlayerID)
			continue
		}
		if *p.EloBefore != StartingElo {
			t.Errorf("player %d: expected elo_before %d, got %d", p.PlayerID, StartingElo, *p.EloBefore)
		}
	}
}

// Участник без результата считается проигравшим, а не пропускается.
func TestLedgerNilResultCountsAsLoss(t *testing.T) {
	stats, pods, ledger := newLedgerEnv(t)
	pod := seedCompletedPod(t, pods, stats, []models.Participant{
		{PlayerID: 1, Result: playerResult(models.PlayerResultWin), TurnOrder: seat(1)},
		{PlayerID: 2, Result: nil, TurnOrder: seat(2)},
		{PlayerID: 3, Result: playerResult(models.PlayerResultLoss), TurnOrder: seat(3)},
	})

	if err := ledger.Apply(context.Background(), nil, pod); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	user, _ := stats.userRow(2)
	if user.Losses != 1 {
		t.Errorf("nil result: expected 1 loss, got %d", user.Losses)
	}
	row := stats.leagueRow(2, testLeagueID)
	if row.TotalPoints != 1 {
		t.Errorf("nil result: expected loss points 1, got %d", row.TotalPoints)
	}
}

func TestLedgerApplyThenReverseIsZeroSum(t *testing.T) {
	stats, pods, ledger := newLedgerEnv(t)
	pod := seedCompletedPod(t, pods, stats, []models.Participant{
		{PlayerID: 1, Result: playerResult(models.PlayerResultWin), TurnOrder: seat(1)},
		{PlayerID: 2, Result: playerResult(models.PlayerResultLoss), TurnOrder: seat(2)},
		{PlayerID: 3, Result: playerResult(models.PlayerResultLoss), TurnOrder: seat(3)},
		{PlayerID: 4, Result: playerResult(models.PlayerResultLoss), TurnOrder: seat(4)},
	})

	ctx := context.Background()
	if err := ledger.Apply(ctx, nil, pod); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	// Откат читает историю эло из записей участников.
	reloaded, err := pods.GetByID(ctx, nil, pod.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if err := ledger.Reverse(ctx, nil, reloaded); err != nil {
		t.Fatalf("Reverse: %v", err)
	}

	for _, playerID := range []int{1, 2, 3, 4} {
		user, elo := stats.userRow(playerID)
		if user.Wins != 0 || user.Losses != 0 || user.Draws != 0 {
			t.Errorf("player %d: counters not zeroed: %d/%d/%d", playerID, user.Wins, user.Losses, user.Draws)
		}
		if elo != StartingElo {
			t.Errorf("player %d: elo not restored, got %d", playerID, elo)
		}
		row := stats.leagueRow(playerID, testLeagueID)
		if row.TotalPoints != 0 {
			t.Errorf("player %d: points not zeroed, got %d", playerID, row.TotalPoints)
		}
		if row.EloRating != StartingElo {
			t.Errorf("player %d: league elo not restored, got %d", playerID, row.EloRating)
		}
	}

	// Откат стирает историю эло: под снова выглядит неприменённым.
	participants, _ := pods.GetParticipants(ctx, nil, pod.ID)
	for _, p := range participants {
		if p.EloChange != nil || p.EloBefore != nil {
			t.Errorf("player %d: elo history survived reversal", p.PlayerID)
		}
	}
}

// Повторное применение без отката удвоило бы очки и эло; записанная история
// эло служит маркером уже применённого пода.
func TestLedgerRefusesDoubleApply(t *testing.T) {
	stats, pods, ledger := newLedgerEnv(t)
	pod := seedCompletedPod(t, pods, stats, []models.Participant{
		{PlayerID: 1, Result: playerResult(models.PlayerResultWin), TurnOrder: seat(1)},
		{PlayerID: 2, Result: playerResult(models.PlayerResultLoss), TurnOrder: seat(2)},
		{PlayerID: 3, Result: playerResult(models.PlayerResultLoss), TurnOrder: seat(3)},
	})

	ctx := context.Background()
	if err := ledger.Apply(ctx, nil, pod); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	reloaded, err := pods.GetByID(ctx, nil, pod.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if err := ledger.Apply(ctx, nil, reloaded); !errors.Is(err, ErrStatsReversalRequired) {
		t.Fatalf("second apply: expected ErrStatsReversalRequired, got %v", err)
	}

	// Счётчики не тронуты вторым вызовом.
	winner, _ := stats.userRow(1)
	if winner.Wins != 1 {
		t.Errorf("expected 1 win after refused reapply, got %d", winner.Wins)
	}
	if row := stats.leagueRow(1, testLeagueID); row.TotalPoints != 4 {
		t.Errorf("expected 4 points after refused reapply, got %d", row.TotalPoints)
	}

	// После отката применение снова допустимо.
	if err := ledger.Reverse(ctx, nil, reloaded); err != nil {
		t.Fatalf("Reverse: %v", err)
	}
	cleared, err := pods.GetByID(ctx, nil, pod.ID)
	if err != nil {
		t.Fatalf("GetByID after reverse: %v", err)
	}
	if err := ledger.Apply(ctx, nil, cleared); err != nil {
		t.Fatalf("apply after reversal: %v", err)
	}
}

func TestLedgerAllDraw(t *testing.T) {
	stats, pods, ledger := newLedgerEnv(t)
	pod := seedCompletedPod(t, pods, stats, []models.Participant{
		{PlayerID: 1, Result: playerResult(models.PlayerResultDraw), TurnOrder: seat(1)},
		{PlayerID: 2, Result: playerResult(models.PlayerResultDraw), TurnOrder: seat(2)},
		{PlayerID: 3, Result: playerResult(models.PlayerResultDraw), TurnOrder: seat(3)},
	})

	if err := ledger.Apply(context.Background(), nil, pod); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	for _, playerID := range []int{1, 2, 3} {
		user, _ := stats.userRow(playerID)
		if user.Draws != 1 {
			t.Errorf("player %d: expected 1 draw, got %d", playerID, user.Draws)
		}
		row := stats.leagueRow(playerID, testLeagueID)
		if row.TotalPoints != 1 {
			t.Errorf("player %d: expected 1 draw point, got %d", playerID, row.TotalPoints)
		}
	}
}
