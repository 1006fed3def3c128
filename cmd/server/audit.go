package main

import (
	"log/slog"
	"time"

	"consentry/internal/audit"
	"consentry/internal/platform/config"
	"consentry/internal/platform/health"
	"consentry/internal/platform/kafka/producer"
)

const (
	auditBuffer       = 256
	kafkaCloseTimeout = 5 * time.Second
)

type auditBackend struct {
	publisher *audit.Publisher
	check     health.CheckFunc
	close     func()
}

// newAuditBackend publishes to Kafka when brokers are configured and keeps
// events in memory otherwise.
func newAuditBackend(cfg config.Server, log *slog.Logger) (*auditBackend, error) {
	opts := []audit.PublisherOption{
		audit.WithAsyncBuffer(auditBuffer),
		audit.WithPublisherLogger(log),
		audit.WithPublisherMetrics(audit.NewMetrics(nil)),
	}

	if cfg.Kafka.Brokers == "" {
		pub := audit.NewPublisher(audit.NewInMemoryStore(), opts...)
		return &auditBackend{publisher: pub, close: pub.Close}, nil
	}

	p, err := producer.New(cfg.Kafka, log)
	if err != nil {
		return nil, err
	}
	pub := audit.NewPublisher(audit.NewKafkaStore(p, cfg.Kafka.AuditTopic), opts...)
	return &auditBackend{
		publisher: pub,
		check:     p.Health,
		close: func() {
			pub.Close()
			p.Close(kafkaCloseTimeout)
		},
	}, nil
}
