package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/boloapp/order-service/internal/models"
	"github.com/boloapp/order-service/internal/store"
	"github.com/boloapp/order-service/pkg/logger"
)

// MessageHandler processes one outbox message.
type MessageHandler interface {
	HandleMessage(ctx context.Context, message *models.OutboxMessage) error
}

// Processor polls the outbox table and dispatches pending messages to the
// handler registered for their event type.
type Processor struct {
	outbox          store.OutboxStore
	deadLetters     store.DeadLetterStore
	handlers        map[string]MessageHandler
	pollingInterval time.Duration
	batchSize       int
	maxRetries      int
	logger          logger.Logger
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	running         bool
	mu              sync.Mutex
}

// ProcessorConfig holds the configuration for the Processor.
type ProcessorConfig struct {
	PollingInterval time.Duration
	BatchSize       int
	MaxRetries      int
}

// NewProcessor creates a new Processor. deadLetters may be nil, in which
// case exhausted messages are only marked failed.
func NewProcessor(outbox store.OutboxStore, deadLetters store.DeadLetterStore, config ProcessorConfig, log logger.Logger) *Processor {
	ctx, cancel := context.WithCancel(context.Background())

	return &Processor{
		outbox:          outbox,
		deadLetters:     deadLetters,
		handlers:        make(map[string]MessageHandler),
		pollingInterval: config.PollingInterval,
		batchSize:       config.BatchSize,
		maxRetries:      config.MaxRetries,
		logger:          log,
		ctx:             ctx,
		cancel:          cancel,
	}
}

// RegisterHandler registers a message handler for a specific event type.
func (p *Processor) RegisterHandler(eventType string, handler MessageHandler) {
	p.handlers[eventType] = handler
}

// Start starts the polling loop.
func (p *Processor) Start() {
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

	p.logger.Info("outbox processor started",
		"pollingInterval", p.pollingInterval,
		"batchSize", p.batchSize)
}

// Stop stops the polling loop and waits for the in-flight batch.
func (p *Processor) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	p.cancel()
	p.wg.Wait()
	p.running = false

	p.logger.Info("outbox processor stopped")
}

func (p *Processor) run() {
	ticker := time.NewTicker(p.pollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			if err := p.ProcessBatch(p.ctx); err != nil {
				p.logger.Error("failed to process outbox batch", "error", err)
			}
		}
	}
}

// ProcessBatch drains up to batchSize pending messages. Exported so tests
// and one-shot tools can drive the processor without the ticker.
func (p *Processor) ProcessBatch(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.pollingInterval)
	defer cancel()

	messages, err := p.outbox.GetPendingMessages(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("failed to get pending messages: %w", err)
	}

	if len(messages) == 0 {
		return nil
	}

	p.logger.Debug("processing outbox batch", "count", len(messages))

	for _, msg := range messages {
		if err := p.processMessage(ctx, msg); err != nil {
			p.logger.Error("failed to process outbox message",
				"error", err,
				"messageID", msg.ID,
				"aggregateID", msg.AggregateID,
				"eventType", msg.EventType)
			continue
		}
	}

	return nil
}

func (p *Processor) processMessage(ctx context.Context, msg *models.OutboxMessage) error {
	if err := p.outbox.MarkProcessing(ctx, msg.ID); err != nil {
		return fmt.Errorf("failed to mark message as processing: %w", err)
	}

	handler, exists := p.handlers[msg.EventType]
	if !exists {
		errorMsg := fmt.Sprintf("no handler registered for event type %s", msg.EventType)
		p.fail(ctx, msg, errorMsg)
		return fmt.Errorf("%s", errorMsg)
	}

	if err := handler.HandleMessage(ctx, msg); err != nil {
		if msg.ProcessingAttempts >= p.maxRetries {
			errorMsg := fmt.Sprintf("max retries reached: %s", err.Error())
			p.fail(ctx, msg, errorMsg)
			return fmt.Errorf("message failed after %d attempts: %w", msg.ProcessingAttempts, err)
		}

		if markErr := p.outbox.MarkRetry(ctx, msg.ID, err.Error()); markErr != nil {
			p.logger.Error("failed to record message failure", "error", markErr, "messageID", msg.ID)
		}
		p.logger.Warn("message processing failed, will retry",
			"error", err,
			"messageID", msg.ID,
			"attempt", msg.ProcessingAttempts)
		return err
	}

	if err := p.outbox.MarkCompleted(ctx, msg.ID); err != nil {
		return fmt.Errorf("failed to mark message as completed: %w", err)
	}

	p.logger.Info("outbox message published",
		"messageID", msg.ID,
		"aggregateID", msg.AggregateID,
		"eventType", msg.EventType)

	return nil
}

// fail marks the message failed and, when a dead letter store is wired,
// parks a copy there for operator review.
func (p *Processor) fail(ctx context.Context, msg *models.OutboxMessage, errorMsg string) {
	if err := p.outbox.MarkFailed(ctx, msg.ID, errorMsg); err != nil {
		p.logger.Error("failed to mark message as failed", "error", err, "messageID", msg.ID)
	}

	if p.deadLetters == nil {
		return
	}

	dlm := models.NewDeadLetterMessage(msg, errorMsg)
	if err := p.deadLetters.Create(ctx, dlm); err != nil {
		p.logger.Error("failed to move message to dead letter queue",
			"error", err,
			"messageID", msg.ID)
		return
	}

	p.logger.Warn("message moved to dead letter queue",
		"messageID", msg.ID,
		"deadLetterID", dlm.ID,
		"eventType", msg.EventType)
}
