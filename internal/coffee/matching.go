// Package coffee implements the weekly Random Coffee round: paid sign-ups,
// the pairing algorithm, refunds for whoever is left over, and the
// day-before reminder.
package coffee

import (
	"math/rand"
	"sort"
	"strings"

	"github.com/henzerboss/evsi-store/internal/model"
)

// Participant is one paid sign-up joined with its profile, the unit the
// matcher operates on.
type Participant struct {
	ParticipationID  string
	ProfileID        string
	TelegramUserID   string
	Name             string
	Specialty        string
	Interests        string
	LinkedIn         *string
	ProviderChargeID *string
}

// Pair is one selected match.
type Pair struct {
	A, B Participant
}

// MatchResult is the outcome of one matching pass. Every participant
// appears exactly once: either in one pair or in Leftovers.
type MatchResult struct {
	Pairs     []Pair
	Leftovers []Participant
}

type edge struct {
	u, v   int // indexes into the shuffled participant slice
	weight int
}

// pairKey builds the canonical unordered key for two profile ids.
func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

// ForbiddenPairs derives the set of profile pairs that have already met.
// Direction does not matter: (A,B) in history forbids both (A,B) and (B,A).
func ForbiddenPairs(history []model.HistoryPair) map[string]struct{} {
	forbidden := make(map[string]struct{}, len(history))
	for _, h := range history {
		forbidden[pairKey(h.ProfileA, h.ProfileB)] = struct{}{}
	}
	return forbidden
}

func isInterestToken(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == ',' || r == '.' || r == '-'
}

// tokenize lowercases the free-text interests and counts tokens longer than
// two characters, split on whitespace and light punctuation.
func tokenize(s string) map[string]int {
	counts := make(map[string]int)
	for _, tok := range strings.FieldsFunc(strings.ToLower(s), isInterestToken) {
		if len(tok) > 2 {
			counts[tok]++
		}
	}
	return counts
}

// InterestOverlap counts shared interest tokens between two free-text
// fields. It is a multiset intersection: a token both people repeat counts
// once per shared occurrence.
func InterestOverlap(a, b string) int {
	if a == "" || b == "" {
		return 0
	}
	ca, cb := tokenize(a), tokenize(b)
	overlap := 0
	for tok, n := range ca {
		if m, ok := cb[tok]; ok {
			if m < n {
				overlap += m
			} else {
				overlap += n
			}
		}
	}
	return overlap
}

// EdgeWeight scores a candidate pair. Zero overlap still yields the base
// weight of 1, so empty interests never block a match.
func EdgeWeight(overlap int) int {
	return 1 + 10*overlap
}

// Match runs one pairing pass:
//
//  1. shuffle participants uniformly (Fisher–Yates via rng) so that equal
//     weights resolve without positional bias,
//  2. build every non-forbidden edge with weight 1 + 10×overlap,
//  3. stable-sort edges by weight descending — ties keep shuffle order,
//  4. greedily claim edges whose endpoints are both still free.
//
// The greedy pass approximates maximum-weight matching and never
// backtracks. Leftovers are returned in shuffle order. The shuffle is the
// only source of randomness: the whole result is a pure function of
// (participants, history, rng).
func Match(participants []Participant, history []model.HistoryPair, rng *rand.Rand) MatchResult {
	shuffled := make([]Participant, len(participants))
	copy(shuffled, participants)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	forbidden := ForbiddenPairs(history)

	var edges []edge
	for i := 0; i < len(shuffled); i++ {
		for j := i + 1; j < len(shuffled); j++ {
			if _, ok := forbidden[pairKey(shuffled[i].ProfileID, shuffled[j].ProfileID)]; ok {
				continue
			}
			overlap := InterestOverlap(shuffled[i].Interests, shuffled[j].Interests)
			edges = append(edges, edge{u: i, v: j, weight: EdgeWeight(overlap)})
		}
	}

	sort.SliceStable(edges, func(a, b int) bool {
		return edges[a].weight > edges[b].weight
	})

	claimed := make(map[string]struct{}, len(shuffled))
	var result MatchResult
	for _, e := range edges {
		u, v := shuffled[e.u], shuffled[e.v]
		if _, ok := claimed[u.ProfileID]; ok {
			continue
		}
		if _, ok := claimed[v.ProfileID]; ok {
			continue
		}
		claimed[u.ProfileID] = struct{}{}
		claimed[v.ProfileID] = struct{}{}
		result.Pairs = append(result.Pairs, Pair{A: u, B: v})
	}

	for _, p := range shuffled {
		if _, ok := claimed[p.ProfileID]; !ok {
			result.Leftovers = append(result.Leftovers, p)
		}
	}
	return result
}
