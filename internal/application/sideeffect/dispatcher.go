// Package sideeffect runs post-commit side effects (printing, notifications)
// from a persisted queue. The ledger is the source of truth: a task that
// keeps failing is retried with exponential backoff and eventually marked
// dead, never rolled back into the ledger.
package sideeffect

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/dukasoft/tillpoint-api/internal/application/collaborator"
	"github.com/dukasoft/tillpoint-api/internal/domain/entity"
	"github.com/dukasoft/tillpoint-api/internal/domain/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RetryConfig bounds the retry behavior of the dispatcher
type RetryConfig struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	PollEvery   time.Duration
	BatchSize   int
}

// DefaultRetryConfig returns the stock retry budget
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 10,
		BaseBackoff: 5 * time.Second,
		MaxBackoff:  10 * time.Minute,
		PollEvery:   2 * time.Second,
		BatchSize:   20,
	}
}

// backoff returns base * 2^(attempt-1), capped.
func backoff(attempt int, cfg RetryConfig) time.Duration {
	if attempt <= 0 {
		return cfg.BaseBackoff
	}
	exp := float64(attempt - 1)
	delay := time.Duration(float64(cfg.BaseBackoff) * math.Pow(2, exp))
	if delay > cfg.MaxBackoff {
		return cfg.MaxBackoff
	}
	return delay
}

// TicketPayload is the serialized item batch carried by print_ticket tasks
type TicketPayload struct {
	Items []entity.OrderItem `json:"items"`
}

// Dispatcher drains the side effect queue in the background
type Dispatcher struct {
	tasks    repository.SideEffectRepository
	printer  collaborator.TicketPrinter
	notifier collaborator.Notifier
	logger   *logrus.Logger
	cfg      RetryConfig
}

// NewDispatcher creates a new side effect dispatcher
func NewDispatcher(
	tasks repository.SideEffectRepository,
	printer collaborator.TicketPrinter,
	notifier collaborator.Notifier,
	logger *logrus.Logger,
	cfg RetryConfig,
) *Dispatcher {
	return &Dispatcher{
		tasks:    tasks,
		printer:  printer,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
	}
}

// EnqueueTicket queues a kitchen ticket for the given item batch.
func (d *Dispatcher) EnqueueTicket(ctx context.Context, receiptID uuid.UUID, items []entity.OrderItem) {
	payload, _ := json.Marshal(TicketPayload{Items: items})
	d.enqueue(ctx, entity.SideEffectTask{
		Kind:      entity.SideEffectPrintTicket,
		ReceiptID: receiptID,
		Payload:   string(payload),
	})
}

// EnqueueReceiptPrint queues a customer receipt print.
func (d *Dispatcher) EnqueueReceiptPrint(ctx context.Context, receiptID uuid.UUID) {
	d.enqueue(ctx, entity.SideEffectTask{
		Kind:      entity.SideEffectPrintReceipt,
		ReceiptID: receiptID,
	})
}

// EnqueueNotify queues an external notification.
func (d *Dispatcher) EnqueueNotify(ctx context.Context, receiptID uuid.UUID, payload string) {
	d.enqueue(ctx, entity.SideEffectTask{
		Kind:      entity.SideEffectNotify,
		ReceiptID: receiptID,
		Payload:   payload,
	})
}

// enqueue never surfaces an error to the caller: the triggering ledger
// transition has already committed.
func (d *Dispatcher) enqueue(ctx context.Context, task entity.SideEffectTask) {
	task.Status = entity.SideEffectStatusPending
	task.NextAttemptAt = time.Now()
	if err := d.tasks.Enqueue(ctx, &task); err != nil {
		d.logger.WithFields(logrus.Fields{
			"kind":       task.Kind,
			"receipt_id": task.ReceiptID,
		}).WithError(err).Error("failed to enqueue side effect")
	}
}

// Run polls for due tasks until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.PollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.drain(ctx)
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) {
	due, err := d.tasks.Due(ctx, time.Now(), d.cfg.BatchSize)
	if err != nil {
		d.logger.WithError(err).Error("failed to fetch due side effects")
		return
	}

	for i := range due {
		d.process(ctx, &due[i])
	}
}

func (d *Dispatcher) process(ctx context.Context, task *entity.SideEffectTask) {
	err := d.execute(ctx, task)
	task.Attempts++

	if err == nil {
		task.Status = entity.SideEffectStatusDone
		task.LastError = ""
	} else if task.Attempts >= d.cfg.MaxAttempts {
		task.Status = entity.SideEffectStatusDead
		task.LastError = err.Error()
		d.logger.WithFields(logrus.Fields{
			"kind":       task.Kind,
			"receipt_id": task.ReceiptID,
			"attempts":   task.Attempts,
		}).WithError(err).Error("side effect marked dead")
	} else {
		task.Status = entity.SideEffectStatusPending
		task.LastError = err.Error()
		task.NextAttemptAt = time.Now().Add(backoff(task.Attempts, d.cfg))
	}

	if updateErr := d.tasks.Update(ctx, task); updateErr != nil {
		d.logger.WithError(updateErr).Error("failed to update side effect task")
	}
}

func (d *Dispatcher) execute(ctx context.Context, task *entity.SideEffectTask) error {
	switch task.Kind {
	case entity.SideEffectPrintTicket:
		var payload TicketPayload
		if err := json.Unmarshal([]byte(task.Payload), &payload); err != nil {
			return err
		}
		return d.printer.PrintTicket(ctx, task.ReceiptID, payload.Items)
	case entity.SideEffectPrintReceipt:
		return d.printer.PrintReceipt(ctx, task.ReceiptID)
	case entity.SideEffectNotify:
		return d.notifier.Notify(ctx, entity.SideEffectNotify, task.ReceiptID, task.Payload)
	}
	// Unknown kinds are dropped as done; there is nothing to retry.
	return nil
}
