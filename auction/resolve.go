package auction

import (
	"math/rand"

	"github.com/rtbexchange/router/agent"
	"github.com/rtbexchange/router/bidrequest"
)

// oneCentMicros is the minimum clear-price increment over the runner-up's
// bid (spec §4.3 "second-highest valid bid's price plus one cent floor";
// scenario S1: runner-up 3000µ clears at 3001µ).
const oneCentMicros = 1

// candidate is one agent's best valid bid for the spot under resolution.
type candidate struct {
	agentID    string
	bid        *Bid
	group      string
	weight     int
	arrivalIdx int
}

// resolveSpot applies the spec §4.3 second-price-with-tie-break rule to one
// ad spot's candidate bids. Returns nil if no bid meets the floor.
func resolveSpot(spot bidrequest.AdSpot, bids []candidate) *Resolution {
	var eligible []candidate
	for _, c := range bids {
		if c.bid.MaxPriceMicros >= spot.FloorMicros {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	winner, runnerUp := pickWinner(eligible)

	clear := spot.FloorMicros
	if runnerUp != nil && runnerUp.bid.MaxPriceMicros+oneCentMicros > clear {
		clear = runnerUp.bid.MaxPriceMicros + oneCentMicros
	}
	if clear > winner.bid.MaxPriceMicros {
		clear = winner.bid.MaxPriceMicros
	}

	runnerUpPrice := int64(0)
	if runnerUp != nil {
		runnerUpPrice = runnerUp.bid.MaxPriceMicros
	}

	return &Resolution{
		HasWinner:           true,
		WinnerAgentID:        winner.agentID,
		WinnerSpotID:         spot.ID,
		WinnerCreativeID:     winner.bid.CreativeID,
		ClearPriceMicros:     clear,
		RunnerUpPriceMicros:  runnerUpPrice,
		Currency:             winner.bid.Currency,
	}
}

// pickWinner finds the highest maxPrice bid, breaking ties by round-robin
// group+weight (weighted-random among the tied agents sharing a group)
// then by arrival order (spec §4.3, testable property 5, scenario S2).
func pickWinner(eligible []candidate) (winner *candidate, runnerUp *candidate) {
	best := eligible[0].bid.MaxPriceMicros
	for _, c := range eligible[1:] {
		if c.bid.MaxPriceMicros > best {
			best = c.bid.MaxPriceMicros
		}
	}

	var tied []candidate
	for i := range eligible {
		if eligible[i].bid.MaxPriceMicros == best {
			tied = append(tied, eligible[i])
		}
	}

	var w candidate
	if len(tied) == 1 {
		w = tied[0]
	} else {
		w = breakTie(tied)
	}

	runnerUpPrice := int64(-1)
	var ru *candidate
	for i := range eligible {
		c := &eligible[i]
		if c.agentID == w.agentID {
			continue
		}
		if c.bid.MaxPriceMicros > runnerUpPrice {
			runnerUpPrice = c.bid.MaxPriceMicros
			ru = c
		}
	}

	wCopy := w
	return &wCopy, ru
}

// breakTie resolves a tie at the top maxPrice among tied candidates.
func breakTie(tied []candidate) candidate {
	grouped := make(map[string][]candidate)
	var ungrouped []candidate
	for _, c := range tied {
		if c.group != "" {
			grouped[c.group] = append(grouped[c.group], c)
		} else {
			ungrouped = append(ungrouped, c)
		}
	}

	// Agents sharing a round-robin group are weighted-random among
	// themselves first; the group's pick then competes with ungrouped
	// agents by arrival order alongside everyone else.
	var pool []candidate
	for _, members := range grouped {
		pool = append(pool, weightedPick(members))
	}
	pool = append(pool, ungrouped...)

	if len(pool) == 1 {
		return pool[0]
	}
	return earliestArrival(pool)
}

// weightedPick selects one candidate from members at random, weighted by
// RoundRobinWeight (spec §3, §4.3, scenario S2: weights 3 and 1 split
// roughly 3000:1000 over 4000 trials).
func weightedPick(members []candidate) candidate {
	total := 0
	for _, m := range members {
		w := m.weight
		if w <= 0 {
			w = 1
		}
		total += w
	}
	if total == 0 {
		return earliestArrival(members)
	}
	r := rand.Intn(total)
	for _, m := range members {
		w := m.weight
		if w <= 0 {
			w = 1
		}
		if r < w {
			return m
		}
		r -= w
	}
	return members[len(members)-1]
}

func earliestArrival(cands []candidate) candidate {
	best := cands[0]
	for _, c := range cands[1:] {
		if c.arrivalIdx < best.arrivalIdx {
			best = c
		}
	}
	return best
}

// bestBidPerAgent keeps each agent's recorded bid if it is for spotID, the
// unit resolveSpot operates on. An Auction holds one bid per agent (the last
// one recorded), so no comparison between an agent's bids happens here.
func bestBidPerAgent(spotID string, bids map[string]*Bid) map[string]*Bid {
	out := make(map[string]*Bid)
	for agentID, b := range bids {
		if b != nil && b.AdSpotID == spotID {
			out[agentID] = b
		}
	}
	return out
}

// candidatesForSpot builds the candidate list resolveSpot needs, pulling
// round-robin group/weight from the registry snapshot and arrival order
// from the auction.
func candidatesForSpot(a *Auction, spotID string, registry *agent.Registry) []candidate {
	perAgent := bestBidPerAgent(spotID, a.Bids)
	arrival := a.ArrivalOrder()
	idx := make(map[string]int, len(arrival))
	for i, id := range arrival {
		idx[id] = i
	}

	out := make([]candidate, 0, len(perAgent))
	for agentID, bid := range perAgent {
		group, weight := "", 0
		if cfg, err := registry.Lookup(agentID); err == nil {
			group, weight = cfg.RoundRobinGroup, cfg.RoundRobinWeight
		}
		out = append(out, candidate{
			agentID:    agentID,
			bid:        bid,
			group:      group,
			weight:     weight,
			arrivalIdx: idx[agentID],
		})
	}
	return out
}
