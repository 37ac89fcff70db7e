// internal/application/usecase/invoice_usecase.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	common "freesia/internal/domain/common"
	invoicedom "freesia/internal/domain/invoice"
)

// InvoiceConfig controls how sale ids are issued.
type InvoiceConfig struct {
	Prefix        string
	InitialNumber int64
	MaxAttempts   int
}

func (c InvoiceConfig) normalized() InvoiceConfig {
	if strings.TrimSpace(c.Prefix) == "" {
		c.Prefix = invoicedom.DefaultPrefix
	}
	if c.InitialNumber <= 0 {
		c.InitialNumber = invoicedom.DefaultInitialNumber
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = invoicedom.DefaultMaxAttempts
	}
	return c
}

// InvoiceSequencer issues unique, increasing invoice numbers from the
// singleton counter record. Gaps are possible (a number whose sale fails is
// never reused); duplicates are not.
type InvoiceSequencer struct {
	store  invoicedom.CounterStore
	cfg    InvoiceConfig
	tracer trace.Tracer
}

func NewInvoiceSequencer(store invoicedom.CounterStore, cfg InvoiceConfig) *InvoiceSequencer {
	return &InvoiceSequencer{
		store:  store,
		cfg:    cfg.normalized(),
		tracer: otel.Tracer("freesia/usecase/invoice"),
	}
}

func (s *InvoiceSequencer) Prefix() string { return s.cfg.Prefix }

// FormatID renders n with the configured prefix.
func (s *InvoiceSequencer) FormatID(n int64) string {
	return invoicedom.FormatID(s.cfg.Prefix, n)
}

// Next runs read-increment-write on the counter in one transaction and
// returns the new value.
func (s *InvoiceSequencer) Next(ctx context.Context) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "invoice.next")
	defer span.End()

	var issued int64
	err := s.store.RunCounterTx(ctx, s.cfg.MaxAttempts, func(ctx context.Context, tx invoicedom.CounterTx) error {
		cur, ok, err := tx.Get()
		if err != nil {
			return err
		}
		if !ok {
			cur = invoicedom.Counter{Current: s.cfg.InitialNumber}
		}
		next := cur.Next()
		if err := tx.Set(next); err != nil {
			return err
		}
		issued = next.Current
		return nil
	})
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, common.ErrContention) {
			log.Printf("[invoice_uc] allocation gave up after %d attempts: %v", s.cfg.MaxAttempts, err)
			return 0, fmt.Errorf("%w: %w", invoicedom.ErrTransientAllocationFailure, err)
		}
		return 0, err
	}

	span.SetAttributes(attribute.Int64("invoice.number", issued))
	return issued, nil
}

// Peek returns the last issued number (or the initial value if none yet).
func (s *InvoiceSequencer) Peek(ctx context.Context) (int64, error) {
	c, ok, err := s.store.Peek(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return s.cfg.InitialNumber, nil
	}
	return c.Current, nil
}

// InitializeIfAbsent creates the counter at max(initial, floor) when it does
// not exist yet. An existing counter is left untouched.
func (s *InvoiceSequencer) InitializeIfAbsent(ctx context.Context, floor int64) (int64, error) {
	var value int64
	err := s.store.RunCounterTx(ctx, s.cfg.MaxAttempts, func(ctx context.Context, tx invoicedom.CounterTx) error {
		cur, ok, err := tx.Get()
		if err != nil {
			return err
		}
		if ok {
			value = cur.Current
			return nil
		}
		start := s.cfg.InitialNumber
		if floor > start {
			start = floor
		}
		value = start
		return tx.Set(invoicedom.Counter{Current: start})
	})
	if err != nil {
		return 0, err
	}
	return value, nil
}
