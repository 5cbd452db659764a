package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// listSports handles GET /v1/sports
func (s *Server) listSports(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"sports": s.markets.Sports()})
}

// getMarkets handles GET /v1/sports/{sport}/markets
func (s *Server) getMarkets(w http.ResponseWriter, r *http.Request) {
	res, err := s.markets.GetMarkets(r.Context(), chi.URLParam(r, "sport"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// refreshMarkets handles POST /v1/sports/{sport}/markets/refresh
func (s *Server) refreshMarkets(w http.ResponseWriter, r *http.Request) {
	res, err := s.markets.RefreshMarkets(r.Context(), chi.URLParam(r, "sport"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
