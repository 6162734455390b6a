// Package scoring turns detector output into a bounded severity score and a
// risk tier. Two policies exist: Weighted, the default, and Categorical for
// callers that only need presence-based escalation.
package scoring

import (
	"fmt"
	"strings"

	"threatscope/internal/domain"
)

const (
	MinScore = 1
	MaxScore = 10

	// LowCeiling and MediumCeiling are the inclusive upper bounds of the LOW and MEDIUM tiers.
	LowCeiling    = 3
	MediumCeiling = 6
)

// Policy assesses one detection result for one address.
type Policy interface {
	Name() string
	Assess(res domain.DetectionResult, addr domain.TargetAddress) domain.SeverityAssessment
}

// ByName resolves a policy from configuration.
func ByName(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", Weighted{}.Name():
		return Weighted{}, nil
	case Categorical{}.Name():
		return Categorical{}, nil
	}
	return nil, fmt.Errorf("unknown scoring policy %q", name)
}

// Weighted adds per-match weights on a base of 1 and clamps to [1,10].
type Weighted struct{}

const (
	weightEmail      = 3
	weightCreditCard = 5
	weightPhone      = 2
	weightKeyword    = 1
	weightDomain     = 2
	plaintextPenalty = 3
)

func (Weighted) Name() string { return "weighted" }

func (w Weighted) Assess(res domain.DetectionResult, addr domain.TargetAddress) domain.SeverityAssessment {
	score := Clamp(RawScore(res, addr))
	return domain.SeverityAssessment{Score: score, Tier: TierForScore(score), Policy: w.Name()}
}

// RawScore is the unclamped weighted sum.
func RawScore(res domain.DetectionResult, addr domain.TargetAddress) int {
	score := 1
	score += weightEmail * res.Count(domain.CategoryEmails)
	score += weightCreditCard * res.Count(domain.CategoryCreditCards)
	score += weightPhone * res.Count(domain.CategoryPhones)
	score += weightKeyword * len(res.Keywords)
	score += weightDomain * len(res.Domains)
	if addr.Plaintext() {
		score += plaintextPenalty
	}
	return score
}

func Clamp(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

func TierForScore(score int) domain.Tier {
	switch {
	case score <= LowCeiling:
		return domain.TierLow
	case score <= MediumCeiling:
		return domain.TierMedium
	default:
		return domain.TierHigh
	}
}

// Categorical escalates on presence alone. Its score is a fixed anchor per tier.
type Categorical struct{}

var tierAnchors = map[domain.Tier]int{
	domain.TierLow:    1,
	domain.TierMedium: 5,
	domain.TierHigh:   10,
}

func (Categorical) Name() string { return "categorical" }

func (c Categorical) Assess(res domain.DetectionResult, _ domain.TargetAddress) domain.SeverityAssessment {
	tier := domain.TierLow
	switch {
	case res.Count(domain.CategoryEmails) > 0 || res.Count(domain.CategoryCreditCards) > 0:
		tier = domain.TierHigh
	case res.Count(domain.CategoryPhones) > 0 || len(res.Keywords) > 0:
		tier = domain.TierMedium
	case len(res.Domains) > 0:
		tier = domain.TierMedium
	}
	return domain.SeverityAssessment{Score: tierAnchors[tier], Tier: tier, Policy: c.Name()}
}
