package usecase

import (
	"sort"

	"github.com/kirillkom/profile-rag-service/internal/core/domain"
)

// fuseReciprocalRank merges per-variant result lists with Reciprocal
// Rank Fusion. Each appearance of a candidate at zero-based rank r in
// a list contributes 1/(k+r+1) to its score. Candidates are identified
// by their ID/Title key so the same chunk surfacing under several
// variants accumulates score instead of duplicating.
func fuseReciprocalRank(lists [][]domain.Candidate, k int) []domain.FusedCandidate {
	if k <= 0 {
		k = 60
	}

	scores := make(map[string]float64)
	byKey := make(map[string]domain.Candidate)
	var order []string

	for _, list := range lists {
		for rank, candidate := range list {
			key := candidate.Key()
			if _, seen := scores[key]; !seen {
				byKey[key] = candidate
				order = append(order, key)
			}
			scores[key] += 1.0 / float64(k+rank+1)
		}
	}

	fused := make([]domain.FusedCandidate, 0, len(order))
	for _, key := range order {
		fused = append(fused, domain.FusedCandidate{
			Candidate:   byKey[key],
			FusionScore: scores[key],
		})
	}
	// Stable sort keeps first-encounter order between equal scores.
	sort.SliceStable(fused, func(a, b int) bool {
		return fused[a].FusionScore > fused[b].FusionScore
	})
	return fused
}

// fuseIntoExisting runs a second fusion pass that merges an extra
// ranked list into an already fused set, treating the fused set's
// current order as one ranked list.
func fuseIntoExisting(existing []domain.FusedCandidate, extra []domain.Candidate, k int) []domain.FusedCandidate {
	asList := make([]domain.Candidate, len(existing))
	for i, fc := range existing {
		asList[i] = fc.Candidate
	}
	return fuseReciprocalRank([][]domain.Candidate{asList, extra}, k)
}

// uniqueUnion flattens result lists without rank fusion, keeping the
// first occurrence of each candidate and its vector score as the
// fusion score.
func uniqueUnion(lists [][]domain.Candidate) []domain.FusedCandidate {
	seen := make(map[string]struct{})
	var out []domain.FusedCandidate
	for _, list := range lists {
		for _, candidate := range list {
			key := candidate.Key()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, domain.FusedCandidate{
				Candidate:   candidate,
				FusionScore: candidate.VectorScore,
			})
		}
	}
	return out
}
