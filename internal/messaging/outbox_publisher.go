package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/cypherlabdev/bet-simulator-service/internal/models"
	"github.com/cypherlabdev/bet-simulator-service/internal/observability"
	"github.com/cypherlabdev/bet-simulator-service/internal/repository"
	"github.com/rs/zerolog"
)

const (
	TopicBetEvents    = "bet.events"
	TopicWalletEvents = "wallet.events"

	processedRetention = 7 * 24 * time.Hour
	cleanupInterval    = time.Hour
)

// OutboxPublisher polls the outbox and publishes ledger events to Kafka
type OutboxPublisher struct {
	outboxRepo    repository.OutboxRepository
	kafkaProducer sarama.SyncProducer
	metrics       *observability.Metrics
	logger        zerolog.Logger
	pollInterval  time.Duration
	batchSize     int
	topicMap      map[string]string // event_type -> Kafka topic
}

// NewOutboxPublisher creates a new outbox publisher
func NewOutboxPublisher(
	outboxRepo repository.OutboxRepository,
	kafkaProducer sarama.SyncProducer,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *OutboxPublisher {
	return &OutboxPublisher{
		outboxRepo:    outboxRepo,
		kafkaProducer: kafkaProducer,
		metrics:       metrics,
		logger:        logger.With().Str("component", "outbox_publisher").Logger(),
		pollInterval:  500 * time.Millisecond,
		batchSize:     100,
		topicMap: map[string]string{
			models.EventTypeBetPlaced:       TopicBetEvents,
			models.EventTypeBetSettled:      TopicBetEvents,
			models.EventTypeWalletDeposited: TopicWalletEvents,
		},
	}
}

// NewSyncProducer creates the Kafka producer used by the publisher
func NewSyncProducer(brokers []string) (sarama.SyncProducer, error) {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll
	kafkaConfig.Producer.Return.Successes = true
	kafkaConfig.Producer.Retry.Max = 3
	kafkaConfig.Producer.Compression = sarama.CompressionSnappy

	return sarama.NewSyncProducer(brokers, kafkaConfig)
}

// Start begins polling for outbox events
func (p *OutboxPublisher) Start(ctx context.Context) {
	p.logger.Info().Dur("poll_interval", p.pollInterval).Msg("outbox publisher started")
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()
	cleanup := time.NewTicker(cleanupInterval)
	defer cleanup.Stop()

	for {
		select {
		case <-ticker.C:
			p.PublishPending(ctx)
		case <-cleanup.C:
			p.cleanup(ctx)
		case <-ctx.Done():
			p.logger.Info().Msg("outbox publisher stopping")
			return
		}
	}
}

// PublishPending publishes one batch of unprocessed events and returns how
// many were delivered
func (p *OutboxPublisher) PublishPending(ctx context.Context) int {
	events, err := p.outboxRepo.GetUnprocessedEvents(ctx, p.batchSize)
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to get unprocessed events")
		return 0
	}

	published := 0
	for _, event := range events {
		publishErr := p.publishEvent(event)
		if publishErr != nil {
			p.metrics.OutboxEventsFailed.WithLabelValues(event.EventType).Inc()
			p.logger.Error().
				Err(publishErr).
				Str("event_id", event.ID.String()).
				Str("event_type", event.EventType).
				Int("retry_count", event.RetryCount).
				Msg("failed to publish event")

			// Increment retry count
			if err := p.outboxRepo.IncrementRetryCount(ctx, event.ID, publishErr.Error()); err != nil {
				p.logger.Error().Err(err).Msg("failed to increment retry count")
			}
			continue
		}

		p.metrics.OutboxEventsPublished.WithLabelValues(event.EventType).Inc()
		published++

		// Mark as processed
		if err := p.outboxRepo.MarkProcessed(ctx, event.ID); err != nil {
			p.logger.Error().Err(err).Msg("failed to mark event as processed")
		}
	}
	return published
}

func (p *OutboxPublisher) cleanup(ctx context.Context) {
	deleted, err := p.outboxRepo.CleanupProcessedEvents(ctx, processedRetention)
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to clean up processed events")
		return
	}
	if deleted > 0 {
		p.logger.Info().Int64("deleted", deleted).Msg("processed outbox events cleaned up")
	}
}

// publishEvent publishes a single event to Kafka
func (p *OutboxPublisher) publishEvent(event *models.OutboxEvent) error {
	topic, ok := p.topicMap[event.EventType]
	if !ok {
		topic = TopicBetEvents
	}

	payload, err := json.Marshal(event.EventPayload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(event.AggregateID.String()),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_id"), Value: []byte(event.ID.String())},
			{Key: []byte("event_type"), Value: []byte(event.EventType)},
			{Key: []byte("aggregate_type"), Value: []byte(event.AggregateType)},
		},
	}

	partition, offset, err := p.kafkaProducer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send to Kafka: %w", err)
	}

	p.logger.Debug().
		Str("event_type", event.EventType).
		Str("topic", topic).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("published event to Kafka")

	return nil
}
