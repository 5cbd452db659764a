package settlement

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cypherlabdev/bet-simulator-service/internal/models"
)

// ValidationStatus is the readiness of a match result for settlement
type ValidationStatus int

const (
	StatusNotReady ValidationStatus = iota
	StatusInvalid
	StatusReady
)

func (s ValidationStatus) String() string {
	switch s {
	case StatusNotReady:
		return "not_ready"
	case StatusInvalid:
		return "invalid"
	case StatusReady:
		return "ready"
	default:
		return "unknown"
	}
}

// ValidationInput is the reported state of a match plus the bet's selection
type ValidationInput struct {
	MatchCompleted bool
	HomeScore      *int
	AwayScore      *int
	Selection      string
	HomeTeam       string
	AwayTeam       string
}

// ValidationResult carries the winner and whether the selection won. Winner,
// FinalScore and UserWon are only set when Status is StatusReady.
type ValidationResult struct {
	Status     ValidationStatus
	Winner     string // HOME, AWAY or DRAW
	FinalScore string // "h - a"
	UserWon    bool
	Reason     string
}

// Validate decides whether a match can settle a bet and who won
func Validate(in ValidationInput) ValidationResult {
	if !in.MatchCompleted {
		return ValidationResult{Status: StatusNotReady, Reason: "match not completed"}
	}
	if in.HomeScore == nil || in.AwayScore == nil {
		return ValidationResult{Status: StatusNotReady, Reason: "scores not reported"}
	}

	home, away := *in.HomeScore, *in.AwayScore
	if home < 0 || away < 0 {
		return ValidationResult{
			Status: StatusInvalid,
			Reason: fmt.Sprintf("negative score %d - %d", home, away),
		}
	}

	winner := models.SelectionDraw
	switch {
	case home > away:
		winner = models.SelectionHome
	case away > home:
		winner = models.SelectionAway
	}

	return ValidationResult{
		Status:     StatusReady,
		Winner:     winner,
		FinalScore: fmt.Sprintf("%d - %d", home, away),
		UserWon:    NormalizeSelection(in.Selection, in.HomeTeam, in.AwayTeam) == winner,
	}
}

// NormalizeSelection maps a selection to HOME, AWAY or DRAW. Literals match in
// any case; team names match the event's home or away team case-insensitively.
// Anything else normalizes to "" and never wins.
func NormalizeSelection(selection, homeTeam, awayTeam string) string {
	s := strings.TrimSpace(selection)

	for _, literal := range []string{models.SelectionHome, models.SelectionAway, models.SelectionDraw} {
		if strings.EqualFold(s, literal) {
			return literal
		}
	}

	if home := strings.TrimSpace(homeTeam); home != "" && strings.EqualFold(s, home) {
		return models.SelectionHome
	}
	if away := strings.TrimSpace(awayTeam); away != "" && strings.EqualFold(s, away) {
		return models.SelectionAway
	}
	return ""
}

// ParseScore parses the provider's string score
func ParseScore(raw string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("unparsable score %q: %w", raw, err)
	}
	return v, nil
}
