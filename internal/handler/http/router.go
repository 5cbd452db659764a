// Package http exposes the simulator over a chi JSON API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cypherlabdev/bet-simulator-service/internal/advisory"
	"github.com/cypherlabdev/bet-simulator-service/internal/market"
	"github.com/cypherlabdev/bet-simulator-service/internal/models"
	"github.com/cypherlabdev/bet-simulator-service/internal/observability"
	"github.com/cypherlabdev/bet-simulator-service/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const requestTimeout = 30 * time.Second

var errInvalidRequest = errors.New("invalid request")

// MarketService is the market manager as seen by the API
type MarketService interface {
	GetMarkets(ctx context.Context, sportKey string) (*market.MarketsResult, error)
	RefreshMarkets(ctx context.Context, sportKey string) (*market.MarketsResult, error)
	Sports() []string
}

// Config wires the router. Websocket and Readiness are optional.
type Config struct {
	Ledger    service.LedgerService
	Markets   MarketService
	Advisor   *advisory.Advisor
	Websocket http.HandlerFunc
	Readiness []ReadinessCheck
	Metrics   *observability.Metrics
	Logger    zerolog.Logger
}

// Server holds the API handlers
type Server struct {
	ledger   service.LedgerService
	markets  MarketService
	advisor  *advisory.Advisor
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewRouter builds the HTTP API
func NewRouter(cfg Config) http.Handler {
	s := &Server{
		ledger:   cfg.Ledger,
		markets:  cfg.Markets,
		advisor:  cfg.Advisor,
		validate: validator.New(),
		logger:   cfg.Logger.With().Str("component", "http_api").Logger(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(Tracing())
	r.Use(Metrics(cfg.Metrics))

	r.Get("/health", HealthHandler())
	r.Get("/ready", ReadyHandler(cfg.Readiness, s.logger))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Websocket != nil {
			r.Get("/ws", cfg.Websocket)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))

			r.Get("/sports", s.listSports)
			r.Get("/sports/{sport}/markets", s.getMarkets)
			r.Post("/sports/{sport}/markets/refresh", s.refreshMarkets)

			r.Get("/wallet", s.getWallet)
			r.Post("/wallet/deposit", s.deposit)
			r.Get("/wallet/transactions", s.listTransactions)

			r.Post("/bets", s.placeBet)
			r.Get("/bets", s.listBets)
			r.Get("/bets/{id}", s.getBet)
			r.Post("/bets/{id}/settle", s.settleBet)

			r.Put("/advisory/estimates", s.putEstimate)
			r.Get("/advisory/estimates/{eventId}", s.getEstimate)
			r.Post("/advisory/stake", s.adviseStake)
		})
	})

	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto status codes
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	var verrs validator.ValidationErrors
	var fetchErr *market.FetchError

	switch {
	case errors.Is(err, errInvalidRequest), errors.As(err, &verrs):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrBetNotFound),
		errors.Is(err, models.ErrEstimateNotFound),
		errors.Is(err, models.ErrUnknownSport):
		return http.StatusNotFound
	case errors.Is(err, models.ErrBetAlreadySettled), errors.Is(err, models.ErrIdempotencyMismatch):
		return http.StatusConflict
	case errors.Is(err, models.ErrInsufficientBalance),
		errors.Is(err, models.ErrInvalidStake),
		errors.Is(err, models.ErrInvalidOdds),
		errors.Is(err, models.ErrInvalidAmount),
		errors.Is(err, models.ErrInvalidSelection),
		errors.Is(err, models.ErrWalletNotInitialized):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrNoMarketData), market.IsTransient(err):
		return http.StatusServiceUnavailable
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidRequest, err)
	}
	return nil
}

// pageParams reads limit and offset; zero values are left to the service
func pageParams(r *http.Request) (limit, offset int, err error) {
	if limit, err = intParam(r, "limit"); err != nil {
		return 0, 0, err
	}
	if offset, err = intParam(r, "offset"); err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", errInvalidRequest, name)
	}
	return v, nil
}
