package http

import (
	"net/http"

	"github.com/cypherlabdev/bet-simulator-service/internal/advisory"
	"github.com/cypherlabdev/bet-simulator-service/internal/models"
	"github.com/go-chi/chi/v5"
)

func (s *Server) putEstimate(w http.ResponseWriter, r *http.Request) {
	var est advisory.Estimate
	if err := decodeJSON(r, &est); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.advisor.Cache().Put(est); err != nil {
		s.writeError(w, r, err)
		return
	}

	cached, _ := s.advisor.Cache().Get(est.EventID)
	writeJSON(w, http.StatusOK, cached)
}

func (s *Server) getEstimate(w http.ResponseWriter, r *http.Request) {
	cached, ok := s.advisor.Cache().Get(chi.URLParam(r, "eventId"))
	if !ok {
		s.writeError(w, r, models.ErrEstimateNotFound)
		return
	}
	writeJSON(w, http.StatusOK, cached)
}

// adviseStake sizes a stake. Without an explicit bankroll the wallet balance
// is used.
func (s *Server) adviseStake(w http.ResponseWriter, r *http.Request) {
	var req advisory.StakeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if req.Bankroll.IsZero() {
		wallet, err := s.ledger.GetWallet(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		req.Bankroll = wallet.Balance
	}

	advice, err := s.advisor.Stake(req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, advice)
}
