package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/cypherlabdev/bet-simulator-service/internal/models"
	"github.com/cypherlabdev/bet-simulator-service/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// HeaderIdempotencyKey makes bet placement safe to retry
const HeaderIdempotencyKey = "Idempotency-Key"

// settleRequest is a manual settlement. Won is a pointer so that an absent
// field fails validation instead of meaning "lost".
type settleRequest struct {
	Won        *bool  `json:"won" validate:"required"`
	FinalScore string `json:"final_score"`
}

func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	var req service.PlaceBetRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.IdempotencyKey = strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))

	bet, err := s.ledger.PlaceBet(r.Context(), &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, bet)
}

func (s *Server) listBets(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var status *models.BetStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		st := models.BetStatus(strings.ToUpper(raw))
		switch st {
		case models.BetStatusPending, models.BetStatusWon, models.BetStatusLost:
			status = &st
		default:
			s.writeError(w, r, fmt.Errorf("%w: unknown bet status %q", errInvalidRequest, raw))
			return
		}
	}

	bets, err := s.ledger.ListBets(r.Context(), status, limit, offset)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"bets": bets})
}

func (s *Server) getBet(w http.ResponseWriter, r *http.Request) {
	id, err := betID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	bet, err := s.ledger.GetBet(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bet)
}

// settleBet handles POST /v1/bets/{id}/settle
func (s *Server) settleBet(w http.ResponseWriter, r *http.Request) {
	id, err := betID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req settleRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, r, err)
		return
	}

	var bet *models.Bet
	if req.FinalScore != "" {
		bet, err = s.ledger.SettleBetWithScore(r.Context(), id, *req.Won, req.FinalScore)
	} else {
		bet, err = s.ledger.SettleBet(r.Context(), id, *req.Won)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bet)
}

func betID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: malformed bet id", errInvalidRequest)
	}
	return id, nil
}
