package service

import (
	"bytes"
	"math"
	"slices"

	"github.com/AdamBeresnev/op-arena/internal/bracket"
	"github.com/google/uuid"
)

// orderEntries returns a copy sorted by seed descending, then earliest
// registration. Entry id breaks the remaining ties so rebuilds are stable.
func orderEntries(entries []bracket.Entry) []bracket.Entry {
	ordered := slices.Clone(entries)
	slices.SortStableFunc(ordered, func(a, b bracket.Entry) int {
		if a.Seed != b.Seed {
			return b.Seed - a.Seed
		}
		if c := a.RegisteredAt.Compare(b.RegisteredAt); c != 0 {
			return c
		}
		return bytes.Compare(a.ID[:], b.ID[:])
	})
	return ordered
}

// Gets the nearest power of 2 while rounding up, so with input 5 it returns 8 and so on
func calcBracketSize(count int) int {
	if count <= 0 {
		return 0
	}

	// Log2 -> Ceil -> 2^^log2 to round up
	log2 := math.Ceil(math.Log2(float64(count)))
	return int(math.Pow(2, log2))
}

// calcRounds is ceil(log2(count)); a single entry needs no rounds.
func calcRounds(count int) int {
	if count <= 1 {
		return 0
	}
	return int(math.Ceil(math.Log2(float64(count))))
}

// generateRound1Pairs returns zero-based seed indexes for every round-1 match
// so that seed 0 and seed 1 can only meet in the final.
func generateRound1Pairs(bracketSize int) [][2]int {
	if bracketSize == 0 {
		return [][2]int{}
	}

	rounds := []int{0}
	for len(rounds) < bracketSize {
		var nextRound []int
		currentCount := len(rounds) * 2

		for _, seed := range rounds {
			nextRound = append(nextRound, seed)
			nextRound = append(nextRound, (currentCount-1)-seed)
		}
		rounds = nextRound
	}

	if bracketSize < 2 {
		return nil
	}

	pairs := make([][2]int, 0, bracketSize/2)
	for i := 0; i < len(rounds); i += 2 {
		matchup := [2]int{rounds[i], rounds[i+1]}
		pairs = append(pairs, matchup)
	}

	return pairs
}

// ShuffleEntries applies a Fisher-Yates shuffle in place.
func ShuffleEntries(entries []bracket.Entry, src RandomSource) {
	for i := len(entries) - 1; i > 0; i-- {
		j := src.IntN(i + 1)
		entries[i], entries[j] = entries[j], entries[i]
	}
}

// placeEntries maps ordered entries onto the round-1 slots of a bracket of
// bracketSize. Slot 2k and 2k+1 meet in round-1 match k+1; a nil slot is a bye.
func placeEntries(method bracket.SeedingMethod, ordered []bracket.Entry, bracketSize int, src RandomSource) []*uuid.UUID {
	slots := make([]*uuid.UUID, bracketSize)
	if bracketSize == 1 && len(ordered) == 1 {
		slots[0] = &ordered[0].ID
		return slots
	}

	switch method {
	case bracket.SeedingSequential:
		for i := range ordered {
			slots[i] = &ordered[i].ID
		}
		return slots
	case bracket.SeedingRandom:
		ordered = slices.Clone(ordered)
		ShuffleEntries(ordered, src)
	}

	for i, pair := range generateRound1Pairs(bracketSize) {
		if pair[0] < len(ordered) {
			slots[2*i] = &ordered[pair[0]].ID
		}
		if pair[1] < len(ordered) {
			slots[2*i+1] = &ordered[pair[1]].ID
		}
	}
	return slots
}
