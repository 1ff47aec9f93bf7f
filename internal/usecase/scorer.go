package usecase

import (
	"sort"
	"strings"

	"github.com/oakley-grocery/backend/internal/domain"
)

// Signal weights used by Score
const (
	weightName    = 0.40
	weightBrand   = 0.20
	weightSize    = 0.15
	weightHistory = 0.15
	weightSpecial = 0.05

	// historySaturation is the purchase count at which the history bonus is full
	historySaturation = 10.0

	unavailableFactor = 0.5
	maxScore          = 1.0
)

// scoreEpsilon absorbs float rounding when comparing scores to thresholds,
// so a gap of 0.5-0.4 still counts as 0.1.
const scoreEpsilon = 1e-9

// ScoreHints are the optional caller preferences that steer ranking
type ScoreHints struct {
	PreferBrand string
	PreferSize  string
}

// Score rates how well candidate matches genericName, in [0, 1].
//
// history is the stored preference for genericName, if any; it only
// contributes when it points at the same product code. Score has no side
// effects and returns the same value for the same inputs.
func Score(candidate domain.CandidateProduct, genericName string, hints ScoreHints, history *domain.Preference) float64 {
	score := tokenOverlap(candidate.Name, genericName) * weightName

	if brand := strings.TrimSpace(hints.PreferBrand); brand != "" {
		if containsEither(brand, candidate.Brand) {
			score += weightBrand
		} else {
			score += tokenOverlap(brand, candidate.Brand) * weightBrand
		}
	}

	if size := strings.TrimSpace(hints.PreferSize); size != "" && containsEither(size, candidate.PackageSize) {
		score += weightSize
	}

	if history != nil && history.ProductCode == candidate.Code {
		score += min(float64(history.PurchaseCount)/historySaturation, 1.0) * weightHistory
	}

	if candidate.OnSpecial {
		score += weightSpecial
	}

	if !candidate.Available {
		score *= unavailableFactor
	}

	return min(score, maxScore)
}

// containsEither reports a case-insensitive substring match in either
// direction. An empty value is contained in anything, so a candidate with no
// brand or size matches any hint.
func containsEither(a, b string) bool {
	a, b = strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// rankCandidates scores every candidate and orders them best first. Equal
// scores keep the provider's order.
func rankCandidates(candidates []domain.CandidateProduct, genericName string, hints ScoreHints, history *domain.Preference) []domain.ScoredCandidate {
	ranked := make([]domain.ScoredCandidate, len(candidates))
	for i, c := range candidates {
		ranked[i] = domain.ScoredCandidate{
			CandidateProduct: c,
			Score:            Score(c, genericName, hints, history),
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	return ranked
}

// shouldAutoResolve applies the confidence gate to a ranked list: the top
// score must reach minScore and lead the runner-up by at least minGap. A
// lone candidate has a gap of 1.
//
// Both comparisons allow scoreEpsilon of slack, so a score or gap that falls
// short of its threshold only by float rounding (0.45 vs 0.35 computes a gap
// of 0.09999999999999998) still passes.
func shouldAutoResolve(ranked []domain.ScoredCandidate, minScore, minGap float64) bool {
	if len(ranked) == 0 {
		return false
	}

	top := ranked[0].Score
	gap := 1.0
	if len(ranked) > 1 {
		gap = top - ranked[1].Score
	}

	return top+scoreEpsilon >= minScore && gap+scoreEpsilon >= minGap
}
