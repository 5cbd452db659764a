// Package advisory sizes stakes from externally supplied probability
// estimates. Its output is a recommendation only and never feeds settlement.
package advisory

import (
	"fmt"
	"time"

	"github.com/cypherlabdev/bet-simulator-service/internal/models"
	"github.com/cypherlabdev/bet-simulator-service/internal/settlement"
	"github.com/cypherlabdev/bet-simulator-service/pkg/oddsmath"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// RecommendationNoBet means the estimator advises staying out
const RecommendationNoBet = "NO_BET"

// DefaultKellyMultiplier is the fractional Kelly applied when a request does
// not name one
const DefaultKellyMultiplier = 0.25

// Estimate is one probability estimate for an event's recommended outcome
type Estimate struct {
	EventID        string    `json:"event_id" validate:"required"`
	Probability    float64   `json:"probability" validate:"gte=0,lte=1"`
	Recommendation string    `json:"recommendation" validate:"required,oneof=HOME AWAY DRAW NO_BET"`
	Confidence     float64   `json:"confidence" validate:"gte=0,lte=1"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// MatchState is the reported state of the match, when the caller knows it
type MatchState struct {
	Completed bool `json:"completed"`
	HomeScore *int `json:"home_score,omitempty"`
	AwayScore *int `json:"away_score,omitempty"`
}

// StakeRequest asks for an advisory stake on a cached estimate
type StakeRequest struct {
	EventID  string          `json:"event_id" validate:"required"`
	Odds     decimal.Decimal `json:"odds"`
	Bankroll decimal.Decimal `json:"bankroll"`
	Fraction float64         `json:"fraction" validate:"gte=0,lte=1"`
	Match    *MatchState     `json:"match,omitempty"`
}

// StakeAdvice is the outcome of a stake request. Stake is zero whenever
// Reason is set.
type StakeAdvice struct {
	EventID        string          `json:"event_id"`
	Recommendation string          `json:"recommendation"`
	Probability    float64         `json:"probability"`
	Edge           decimal.Decimal `json:"edge"`
	KellyFraction  decimal.Decimal `json:"kelly_fraction"`
	Stake          decimal.Decimal `json:"stake"`
	Stale          bool            `json:"stale"`
	Reason         string          `json:"reason,omitempty"`
}

var validate = validator.New()

// ValidateEstimate checks the estimate bounds. NaN probabilities fail.
func ValidateEstimate(e Estimate) error {
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("invalid estimate: %w", err)
	}
	return nil
}

// Edge is the estimated probability minus the price's implied probability
func Edge(probability float64, odds decimal.Decimal) decimal.Decimal {
	implied, err := oddsmath.ImpliedProbability(odds)
	if err != nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(probability).Sub(implied).Round(4)
}

// KellyStake returns bankroll * kelly * fraction rounded to cents. It is
// zero for an invalid estimate, a NO_BET recommendation, a non-positive edge
// or an out-of-range fraction.
func KellyStake(e Estimate, odds, bankroll decimal.Decimal, fraction float64) decimal.Decimal {
	if ValidateEstimate(e) != nil || e.Recommendation == RecommendationNoBet {
		return decimal.Zero
	}
	if fraction <= 0 || fraction > 1 || !bankroll.IsPositive() {
		return decimal.Zero
	}

	kelly, err := oddsmath.KellyFraction(e.Probability, odds)
	if err != nil || !kelly.IsPositive() {
		return decimal.Zero
	}

	return bankroll.Mul(kelly).Mul(decimal.NewFromFloat(fraction)).RoundDown(2)
}

// Decided reports whether the match state already determines the outcome,
// using the same rules as settlement
func Decided(m *MatchState, selection string) bool {
	if m == nil {
		return false
	}
	res := settlement.Validate(settlement.ValidationInput{
		MatchCompleted: m.Completed,
		HomeScore:      m.HomeScore,
		AwayScore:      m.AwayScore,
		Selection:      selection,
	})
	return res.Status == settlement.StatusReady
}

// Advisor answers stake requests from the analysis cache
type Advisor struct {
	cache  *AnalysisCache
	logger zerolog.Logger
}

// NewAdvisor creates an advisor over cache
func NewAdvisor(cache *AnalysisCache, logger zerolog.Logger) *Advisor {
	return &Advisor{
		cache:  cache,
		logger: logger.With().Str("component", "advisory").Logger(),
	}
}

// Cache returns the underlying estimate cache
func (a *Advisor) Cache() *AnalysisCache {
	return a.cache
}

// Stake sizes a stake for req. A missing estimate returns
// models.ErrEstimateNotFound; everything else fails closed to a zero stake
// with a reason.
func (a *Advisor) Stake(req StakeRequest) (*StakeAdvice, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	cached, ok := a.cache.Get(req.EventID)
	if !ok {
		return nil, models.ErrEstimateNotFound
	}

	fraction := req.Fraction
	if fraction == 0 {
		fraction = DefaultKellyMultiplier
	}

	est := cached.Estimate
	advice := &StakeAdvice{
		EventID:        est.EventID,
		Recommendation: est.Recommendation,
		Probability:    est.Probability,
		Edge:           Edge(est.Probability, req.Odds),
		Stake:          decimal.Zero,
		Stale:          cached.Stale,
	}

	switch {
	case cached.Stale:
		advice.Reason = "estimate stale"
	case est.Recommendation == RecommendationNoBet:
		advice.Reason = "no bet recommended"
	case Decided(req.Match, est.Recommendation):
		advice.Reason = "outcome decided"
	case !advice.Edge.IsPositive():
		advice.Reason = "no edge"
	default:
		advice.KellyFraction, _ = oddsmath.KellyFraction(est.Probability, req.Odds)
		advice.Stake = KellyStake(est, req.Odds, req.Bankroll, fraction)
		if advice.Stake.IsZero() {
			advice.Reason = "stake rounds to zero"
		}
	}

	a.logger.Debug().
		Str("event_id", req.EventID).
		Str("stake", advice.Stake.String()).
		Str("reason", advice.Reason).
		Msg("stake advice computed")

	return advice, nil
}
