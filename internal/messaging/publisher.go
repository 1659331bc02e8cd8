package messaging

import (
	"context"

	"github.com/burnt-labs/dao-dao-indexer/internal/domain"
	"github.com/burnt-labs/dao-dao-indexer/internal/webhook"
)

// CodeTrackerJob carries a batch's contract events and state events to the
// external wasm-code tracker, which learns code-ID-to-name mappings from
// them. Jobs are keyed by block height and enqueued idempotently.
type CodeTrackerJob struct {
	BlockHeight       uint64                 `json:"block_height"`
	ContractEvents    []domain.ContractEvent `json:"contract_events"`
	StateEventUpdates []domain.StateEvent    `json:"state_event_updates"`
}

// Publisher defines the enqueue boundary to the external queue
type Publisher interface {
	// PublishWebhookEvents enqueues deliverable state events for the webhook
	// subsystem
	PublishWebhookEvents(ctx context.Context, events []webhook.StateEventPayload) error

	// PublishCodeTrackerJob enqueues a wasm-code tracker job, idempotent on
	// the job's block height
	PublishCodeTrackerJob(ctx context.Context, job CodeTrackerJob) error

	// Close closes the connection
	Close()
}
