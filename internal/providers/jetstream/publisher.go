package jetstream

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/burnt-labs/dao-dao-indexer/internal/adapter"
	"github.com/burnt-labs/dao-dao-indexer/internal/logger"
	"github.com/burnt-labs/dao-dao-indexer/internal/messaging"
	"github.com/burnt-labs/dao-dao-indexer/internal/webhook"
)

// Config holds the configuration for the NATS JetStream connection
type Config struct {
	URL            string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectionName string
	// ChainID scopes the subjects so one stream can serve several chains
	ChainID string
	// PublishTimeout bounds the synchronous wait on each publish
	PublishTimeout time.Duration
}

type publisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	json   adapter.JSON
	config Config
}

// NewPublisher connects to NATS and creates a JetStream publisher
func NewPublisher(cfg Config, jsonAdapter adapter.JSON) (messaging.Publisher, error) {
	opts := []nats.Option{
		nats.Name(cfg.ConnectionName),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Error(err, zap.String("message", "Disconnected from NATS"))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("Reconnected to NATS", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if cfg.PublishTimeout == 0 {
		cfg.PublishTimeout = 5 * time.Second
	}

	return &publisher{
		nc:     nc,
		js:     js,
		json:   jsonAdapter,
		config: cfg,
	}, nil
}

// PublishWebhookEvents enqueues one message per deliverable state event
func (p *publisher) PublishWebhookEvents(ctx context.Context, events []webhook.StateEventPayload) error {
	subject := fmt.Sprintf("wasm.webhooks.%s", p.config.ChainID)

	for _, event := range events {
		data, err := p.json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal webhook event: %w", err)
		}

		publishCtx, cancel := context.WithTimeout(ctx, p.config.PublishTimeout)
		_, err = p.js.Publish(publishCtx, subject, data)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to publish webhook event: %w", err)
		}
	}

	logger.Debug("Published webhook events",
		zap.Int("count", len(events)), zap.String("subject", subject))
	return nil
}

// PublishCodeTrackerJob enqueues one tracker job per batch containing
// contract events. The Nats-Msg-Id makes re-enqueues of the same height
// no-ops within the stream's dedup window.
func (p *publisher) PublishCodeTrackerJob(ctx context.Context, job messaging.CodeTrackerJob) error {
	subject := fmt.Sprintf("wasm.codes.%s", p.config.ChainID)

	data, err := p.json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal code tracker job: %w", err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, p.config.PublishTimeout)
	defer cancel()

	msgID := fmt.Sprintf("codes:%s:%d", p.config.ChainID, job.BlockHeight)
	_, err = p.js.Publish(publishCtx, subject, data, jetstream.WithMsgID(msgID))
	if err != nil {
		return fmt.Errorf("failed to publish code tracker job: %w", err)
	}

	logger.Debug("Published code tracker job",
		zap.Uint64("height", job.BlockHeight),
		zap.Int("contract_events", len(job.ContractEvents)))
	return nil
}

// Close closes the NATS connection
func (p *publisher) Close() {
	if p.nc == nil {
		return
	}
	p.nc.Close()
}
