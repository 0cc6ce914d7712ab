// Package events publishes audit outcome events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"call-audit-go/internal/logger"
	"call-audit-go/internal/metrics"
	"call-audit-go/internal/types"
)

const eventAuditCompleted = "audit.completed"

// AuditCompleted is emitted once per completed audit.
type AuditCompleted struct {
	RecordID           string                   `json:"record_id"`
	OwnerID            string                   `json:"owner_id,omitempty"`
	Filename           string                   `json:"filename,omitempty"`
	Category           string                   `json:"category"`
	Satisfaction       float64                  `json:"satisfaction"`
	Urgency            types.Urgency            `json:"urgency"`
	ResolutionStatus   types.Resolution         `json:"resolution_status"`
	InteractionQuality types.InteractionQuality `json:"interaction_quality"`
	AgentTone          string                   `json:"agent_tone"`
	DurationMs         int64                    `json:"duration_ms"`
	Timestamp          time.Time                `json:"timestamp"`
}

// NewAuditCompleted builds the event from a finished analysis.
func NewAuditCompleted(recordID, ownerID, filename string, res *types.AnalysisResult, d time.Duration) AuditCompleted {
	return AuditCompleted{
		RecordID:           recordID,
		OwnerID:            ownerID,
		Filename:           filename,
		Category:           res.Category,
		Satisfaction:       res.Satisfaction,
		Urgency:            res.Urgency,
		ResolutionStatus:   res.ResolutionStatus,
		InteractionQuality: res.InteractionQuality,
		AgentTone:          res.AgentTone,
		DurationMs:         d.Milliseconds(),
		Timestamp:          res.Timestamp,
	}
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers []string
	Topic   string
}

// Publisher writes audit events to a single Kafka topic. With no brokers it
// runs in log-only mode.
type Publisher struct {
	writer  *kafka.Writer
	topic   string
	enabled bool
	log     *logger.Logger
	metrics *metrics.Metrics
}

func New(cfg Config, log *logger.Logger) *Publisher {
	log = log.WithComponent("events")
	p := &Publisher{topic: cfg.Topic, log: log, metrics: metrics.Default}

	if len(cfg.Brokers) == 0 {
		log.Info("kafka disabled, using log-only mode")
		return p
	}

	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    &kafka.Transport{Dial: dialer.DialFunc},
	}
	p.enabled = true

	log.WithField("brokers", cfg.Brokers).WithField("topic", cfg.Topic).Info("kafka publisher initialized")
	return p
}

func (p *Publisher) Enabled() bool { return p.enabled }

// PublishAudit publishes ev keyed by its record id.
func (p *Publisher) PublishAudit(ctx context.Context, ev AuditCompleted) error {
	start := time.Now()

	payload, err := json.Marshal(ev)
	if err != nil {
		p.log.WithError(err).Error("marshal audit event")
		return err
	}

	p.log.WithField("topic", p.topic).
		WithField("key", ev.RecordID).
		WithField("payload", string(payload)).
		Debug("publishing event")

	if !p.enabled {
		p.metrics.RecordKafkaPublish(p.topic, eventAuditCompleted, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(ev.RecordID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventAuditCompleted)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.WithError(err).WithField("key", ev.RecordID).Error("write to kafka")
		p.metrics.RecordKafkaPublish(p.topic, eventAuditCompleted, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(p.topic, eventAuditCompleted, nil, time.Since(start).Seconds())
	return nil
}

func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
