package services

import (
	"math"

	"github.com/Dosada05/escalation-league/models"
)

// Elo rating for 3-4 player pods: winner-takes-all with pairwise expected
// scores, seat weighting for turn-order advantage, and a K-factor that
// shrinks as a player accumulates games.

const (
	// StartingElo is assumed for players with no rating row yet.
	StartingElo = 1500
	// BaseK is the nominal rating volatility.
	BaseK = 32
)

type seatWeight struct {
	winBonus    float64
	lossPenalty float64
}

// Seat 1 acts first and wins slightly more often, so its wins are worth less
// and its losses hurt more; seat 4 is the mirror image.
var seatWeights = map[int]seatWeight{
	1: {winBonus: 0.95, lossPenalty: 1.05},
	2: {winBonus: 1.00, lossPenalty: 1.00},
	3: {winBonus: 1.05, lossPenalty: 0.95},
	4: {winBonus: 1.10, lossPenalty: 0.90},
}

// kFactor gives new players higher volatility for faster calibration.
func kFactor(gamesPlayed int) float64 {
	switch {
	case gamesPlayed < 10:
		return 40
	case gamesPlayed < 30:
		return 32
	default:
		return 24
	}
}

// EloPlayer is one participant's rating input.
type EloPlayer struct {
	PlayerID    int
	CurrentElo  int
	Result      *models.PlayerResult
	TurnOrder   int
	GamesPlayed int
}

// EloChange is the computed delta for one player, with the pre-game rating
// kept so a reversal is exact.
type EloChange struct {
	PlayerID  int
	EloChange int
	EloBefore int
}

// expectedScore averages the standard pairwise Elo expectation against every
// opponent.
func expectedScore(playerElo int, opponentElos []int) float64 {
	if len(opponentElos) == 0 {
		return 0.5
	}
	var total float64
	for _, oppElo := range opponentElos {
		total += 1 / (1 + math.Pow(10, float64(oppElo-playerElo)/400))
	}
	return total / float64(len(opponentElos))
}

// CalculateEloChanges computes rating deltas for a completed pod. Fewer than
// two rated players yields zero changes.
func CalculateEloChanges(players []EloPlayer) []EloChange {
	if len(players) < 2 {
		changes := make([]EloChange, 0, len(players))
		for _, p := range players {
			changes = append(changes, EloChange{PlayerID: p.PlayerID, EloChange: 0, EloBefore: p.CurrentElo})
		}
		return changes
	}

	isDraw := true
	for _, p := range players {
		if p.Result == nil || *p.Result != models.PlayerResultDraw {
			isDraw = false
			break
		}
	}

	changes := make([]EloChange, 0, len(players))
	for _, player := range players {
		opponentElos := make([]int, 0, len(players)-1)
		for _, opp := range players {
			if opp.PlayerID != player.PlayerID {
				opponentElos = append(opponentElos, opp.CurrentElo)
			}
		}
		expected := expectedScore(player.CurrentElo, opponentElos)

		var actual float64
		switch {
		case isDraw:
			// Everyone gets an equal share of the pot.
			actual = 1 / float64(len(players))
		case player.Result != nil && *player.Result == models.PlayerResultWin:
			actual = 1
		default:
			actual = 0
		}

		k := kFactor(player.GamesPlayed)
		weight, ok := seatWeights[player.TurnOrder]
		if !ok {
			weight = seatWeights[2]
		}

		delta := k * (actual - expected)
		var rounded int
		switch {
		case delta > 0:
			rounded = int(math.Round(delta * weight.winBonus))
		case delta < 0:
			rounded = int(math.Round(delta * weight.lossPenalty))
		}

		changes = append(changes, EloChange{
			PlayerID:  player.PlayerID,
			EloChange: rounded,
			EloBefore: player.CurrentElo,
		})
	}
	return changes
}
