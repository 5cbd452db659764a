package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
)

// Pinger is a backend that can report its reachability.
// Satisfied by *pgxpool.Pool and the odds cache stores.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadinessCheck is one named dependency probed by /ready
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// PingCheck probes a Pinger
func PingCheck(name string, p Pinger) ReadinessCheck {
	return ReadinessCheck{Name: name, Check: p.Ping}
}

// ProducerCheck fails while the Kafka producer is missing
func ProducerCheck(producer sarama.SyncProducer) ReadinessCheck {
	return ReadinessCheck{
		Name: "kafka",
		Check: func(context.Context) error {
			if producer == nil {
				return errors.New("kafka producer is nil")
			}
			return nil
		},
	}
}

// HealthHandler returns a liveness check (always OK)
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "ok",
		})
	}
}

// ReadyHandler returns a readiness check (checks dependencies)
func ReadyHandler(checks []ReadinessCheck, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				logger.Error().Err(err).Str("check", c.Name).Msg("readiness check failed")
				results[c.Name] = "failed: " + err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[c.Name] = "ok"
		}

		body := map[string]interface{}{
			"status": "ready",
			"checks": results,
		}
		if status != http.StatusOK {
			body["status"] = "unavailable"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}
}
