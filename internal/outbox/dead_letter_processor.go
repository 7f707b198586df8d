package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/boloapp/order-service/internal/models"
	"github.com/boloapp/order-service/internal/store"
	"github.com/boloapp/order-service/pkg/logger"
	"github.com/boloapp/order-service/pkg/retry"
)

// DeadLetterProcessor periodically retries dead-lettered messages with
// backoff. Messages that still fail are discarded and left for operator
// review through the admin API.
type DeadLetterProcessor struct {
	deadLetters     store.DeadLetterStore
	handlers        map[string]MessageHandler
	pollingInterval time.Duration
	batchSize       int
	maxRetries      int
	backoff         retry.BackoffStrategy
	logger          logger.Logger
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	running         bool
	mu              sync.Mutex
}

// DeadLetterProcessorConfig holds the configuration for the DeadLetterProcessor.
type DeadLetterProcessorConfig struct {
	PollingInterval time.Duration
	BatchSize       int
	MaxRetries      int
	Backoff         retry.BackoffStrategy
}

// NewDeadLetterProcessor creates a new dead letter processor.
func NewDeadLetterProcessor(deadLetters store.DeadLetterStore, config DeadLetterProcessorConfig, log logger.Logger) *DeadLetterProcessor {
	ctx, cancel := context.WithCancel(context.Background())

	backoff := config.Backoff
	if backoff == nil {
		backoff = retry.NewDefaultExponentialBackoff()
	}

	return &DeadLetterProcessor{
		deadLetters:     deadLetters,
		handlers:        make(map[string]MessageHandler),
		pollingInterval: config.PollingInterval,
		batchSize:       config.BatchSize,
		maxRetries:      config.MaxRetries,
		backoff:         backoff,
		logger:          log,
		ctx:             ctx,
		cancel:          cancel,
	}
}

// RegisterHandler registers a message handler for a specific event type.
func (p *DeadLetterProcessor) RegisterHandler(eventType string, handler MessageHandler) {
	p.handlers[eventType] = handler
}

// Start starts the polling loop.
func (p *DeadLetterProcessor) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}

	p.running = true
	p.wg.Add(1)

	go func() {
		defer p.wg.Done()
		p.run()
	}()

	p.logger.Info("dead letter processor started",
		"pollingInterval", p.pollingInterval,
		"batchSize", p.batchSize,
		"maxRetries", p.maxRetries)
}

// Stop stops the polling loop and waits for the in-flight batch.
func (p *DeadLetterProcessor) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	p.cancel()
	p.wg.Wait()
	p.running = false

	p.logger.Info("dead letter processor stopped")
}

func (p *DeadLetterProcessor) run() {
	ticker := time.NewTicker(p.pollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			if err := p.ProcessBatch(p.ctx); err != nil {
				p.logger.Error("failed to process dead letter batch", "error", err)
			}
		}
	}
}

// ProcessBatch retries up to batchSize retryable messages. Exported so the
// admin retry endpoint and tests can drive it directly.
func (p *DeadLetterProcessor) ProcessBatch(ctx context.Context) error {
	messages, err := p.deadLetters.GetRetryable(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("failed to get retryable messages: %w", err)
	}

	if len(messages) == 0 {
		return nil
	}

	p.logger.Info("retrying dead letter messages", "count", len(messages))

	for _, msg := range messages {
		if err := p.ProcessMessage(ctx, msg); err != nil {
			p.logger.Error("failed to process dead letter message",
				"error", err,
				"messageID", msg.ID,
				"aggregateID", msg.AggregateID,
				"eventType", msg.EventType,
				"retryCount", msg.RetryCount)
			continue
		}
	}

	return nil
}

// ProcessMessage retries one dead-lettered message with backoff.
func (p *DeadLetterProcessor) ProcessMessage(ctx context.Context, msg *models.DeadLetterMessage) error {
	if err := p.deadLetters.MarkRetrying(ctx, msg.ID); err != nil {
		return fmt.Errorf("failed to mark message as retrying: %w", err)
	}

	handler, exists := p.handlers[msg.EventType]
	if !exists {
		p.discard(ctx, msg.ID, fmt.Sprintf("no handler registered for event type %s", msg.EventType))
		return fmt.Errorf("no handler registered for event type %s", msg.EventType)
	}

	// Replay through the same handler the outbox uses, on a fresh copy of
	// the original payload.
	outboxMsg := &models.OutboxMessage{
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       msg.Payload,
		CreatedAt:     models.Now(),
		Status:        models.OutboxStatusPending,
	}

	err := retry.Do(ctx, func() error {
		return handler.HandleMessage(ctx, outboxMsg)
	}, &retry.Config{
		MaxAttempts: p.maxRetries,
		Backoff:     p.backoff,
		Logger:      p.logger,
	})
	if err != nil {
		p.discard(ctx, msg.ID, fmt.Sprintf("failed after %d attempts: %v", p.maxRetries, err))
		return fmt.Errorf("message discarded after %d retries: %w", p.maxRetries, err)
	}

	if err := p.deadLetters.MarkResolved(ctx, msg.ID); err != nil {
		return fmt.Errorf("failed to mark message as resolved: %w", err)
	}

	p.logger.Info("dead letter message resolved",
		"messageID", msg.ID,
		"aggregateID", msg.AggregateID,
		"eventType", msg.EventType)

	return nil
}

func (p *DeadLetterProcessor) discard(ctx context.Context, id int64, reason string) {
	p.logger.Warn("discarding dead letter message", "messageID", id, "reason", reason)
	if err := p.deadLetters.MarkDiscarded(ctx, id); err != nil {
		p.logger.Error("failed to mark message as discarded", "error", err, "messageID", id)
	}
}
