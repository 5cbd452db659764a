package http

import (
	"net/http"

	"github.com/shopspring/decimal"
)

type depositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (s *Server) getWallet(w http.ResponseWriter, r *http.Request) {
	wallet, err := s.ledger.GetWallet(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	wallet, err := s.ledger.Deposit(r.Context(), req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	txns, err := s.ledger.ListTransactions(r.Context(), limit, offset)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"transactions": txns})
}
