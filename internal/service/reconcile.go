package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/BorisSolomonia/Tasty-new-sub000/internal/infra"
	"github.com/BorisSolomonia/Tasty-new-sub000/internal/model"
	"github.com/BorisSolomonia/Tasty-new-sub000/internal/repository"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// LedgerFetcher is the revenue-service capability the engine depends on.
// *infra.RSClient implements it.
type LedgerFetcher interface {
	FetchDocuments(ctx context.Context, dir model.Direction, start, end time.Time) ([]model.LedgerDocument, error)
}

// ProgressFunc receives the engine's step milestones. The orchestrator passes
// a closure that mutates the job record; a polling client then sees smooth
// progress without the engine being instrumented per row.
type ProgressFunc func(step string, percent int)

// Reconciliation step names, in execution order.
const (
	StepQueued        = "queued"
	StepFetchLedger   = "fetching ledger"
	StepFetchPayments = "fetching payments"
	StepFetchStarting = "fetching starting debts"
	StepAggregating   = "aggregating"
	StepWriting       = "writing"
)

// DebtService recomputes every counterparty's debt summary from scratch:
// live sales from the revenue service, stored payments, and configured
// starting balances. Persisting is delegated to the change-detection writer.
type DebtService interface {
	Reconcile(ctx context.Context, source string, progress ProgressFunc) (*model.ReconcileResult, error)
	Summaries(ctx context.Context) ([]model.DebtSummary, error)
}

type debtService struct {
	ledger        LedgerFetcher
	cb            *infra.CircuitBreaker
	payments      repository.PaymentRepository
	startingDebts repository.StartingDebtRepository
	writer        *SummaryWriter
	cutoff        time.Time
	now           func() time.Time
}

func NewDebtService(
	ledger LedgerFetcher,
	cb *infra.CircuitBreaker,
	payments repository.PaymentRepository,
	startingDebts repository.StartingDebtRepository,
	writer *SummaryWriter,
	cutoff time.Time,
) DebtService {
	return &debtService{
		ledger:        ledger,
		cb:            cb,
		payments:      payments,
		startingDebts: startingDebts,
		writer:        writer,
		cutoff:        cutoff,
		now:           time.Now,
	}
}

func (s *debtService) Reconcile(ctx context.Context, source string, progress ProgressFunc) (*model.ReconcileResult, error) {
	if progress == nil {
		progress = func(string, int) {}
	}
	started := s.now()

	// 1. Live sales. A fetch failure aborts the whole run: a partial
	// reconciliation on incomplete sales data would understate every debt.
	progress(StepFetchLedger, 10)
	sales, err := s.fetchSales(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch sales: %w", err)
	}

	progress(StepFetchPayments, 40)
	payments, err := s.payments.ListAfterWindow(ctx)
	if err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}

	progress(StepFetchStarting, 55)
	startingDebts, err := s.startingDebts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load starting debts: %w", err)
	}

	progress(StepAggregating, 70)
	summaries := s.aggregate(sales, payments, startingDebts, source)

	progress(StepWriting, 85)
	written, err := s.writer.Write(ctx, summaries)
	if err != nil {
		return nil, fmt.Errorf("write summaries: %w", err)
	}

	res := &model.ReconcileResult{
		TotalCustomers: len(summaries),
		NewCount:       written.New,
		UpdatedCount:   written.Updated,
		UnchangedCount: written.Unchanged,
		Duration:       s.now().Sub(started),
	}
	log.Info().
		Str("source", source).
		Int("customers", res.TotalCustomers).
		Int("new", res.NewCount).
		Int("updated", res.UpdatedCount).
		Int("unchanged", res.UnchangedCount).
		Dur("duration", res.Duration).
		Msg("reconciliation completed")
	return res, nil
}

// fetchSales pulls sales documents for the active window [cutoff, tomorrow)
// through the circuit breaker.
func (s *debtService) fetchSales(ctx context.Context) ([]model.LedgerDocument, error) {
	end := s.now().AddDate(0, 0, 1).Truncate(24 * time.Hour)
	var docs []model.LedgerDocument
	err := s.cb.Execute(func() error {
		var ferr error
		docs, ferr = s.ledger.FetchDocuments(ctx, model.DirectionSale, s.cutoff, end)
		return ferr
	})
	return docs, err
}

// aggregate groups filtered sales and payments by counterparty, unions with
// the starting-debt counterparties, and computes every summary field.
func (s *debtService) aggregate(sales []model.LedgerDocument, payments []model.Payment, startingDebts []model.StartingDebt, source string) []model.DebtSummary {
	type bucket struct {
		name         string
		paymentName  string
		startingName string

		totalSales decimal.Decimal
		saleCount  int
		lastSale   *time.Time

		totalPayments decimal.Decimal
		paymentCount  int
		lastPayment   *time.Time

		totalCash decimal.Decimal
		cashCount int

		startingDebt decimal.Decimal
		startingDate *time.Time
	}
	buckets := map[string]*bucket{}
	get := func(id string) *bucket {
		b, ok := buckets[id]
		if !ok {
			b = &bucket{
				totalSales:    decimal.Zero,
				totalPayments: decimal.Zero,
				totalCash:     decimal.Zero,
				startingDebt:  decimal.Zero,
			}
			buckets[id] = b
		}
		return b
	}

	// Sales strictly after the cutoff; cancelled documents never count.
	for _, d := range sales {
		if d.Cancelled() || d.CounterpartyID == "" || !d.Date.After(s.cutoff) {
			continue
		}
		b := get(d.CounterpartyID)
		b.totalSales = b.totalSales.Add(d.GrossAmount)
		b.saleCount++
		b.lastSale = laterDate(b.lastSale, d.Date)
		if b.name == "" && d.CounterpartyName != "" {
			b.name = d.CounterpartyName
		}
	}

	// Payments from cutoff+1 day onward: the cutoff date itself still belongs
	// to the historical period on the payments side.
	paymentFloor := s.cutoff.AddDate(0, 0, 1)
	for _, p := range payments {
		if p.CounterpartyID == "" || p.Date.Before(paymentFloor) {
			continue
		}
		b := get(p.CounterpartyID)
		if p.Cash() {
			b.totalCash = b.totalCash.Add(p.Amount)
			b.cashCount++
		} else {
			b.totalPayments = b.totalPayments.Add(p.Amount)
			b.paymentCount++
			b.lastPayment = laterDate(b.lastPayment, p.Date)
		}
		if b.paymentName == "" && p.CounterpartyName != "" {
			b.paymentName = p.CounterpartyName
		}
	}

	// A counterparty with only a starting debt still gets a summary.
	for _, sd := range startingDebts {
		if sd.CounterpartyID == "" {
			continue
		}
		b := get(sd.CounterpartyID)
		b.startingDebt = sd.Debt
		b.startingDate = sd.Date
		if b.startingName == "" {
			b.startingName = sd.Name
		}
	}

	now := s.now()
	summaries := make([]model.DebtSummary, 0, len(buckets))
	for id, b := range buckets {
		name := firstNonEmpty(b.name, b.paymentName, b.startingName, "Unknown")
		summaries = append(summaries, model.DebtSummary{
			CounterpartyID:    id,
			CounterpartyName:  name,
			TotalSales:        b.totalSales,
			SaleCount:         b.saleCount,
			LastSaleDate:      b.lastSale,
			TotalPayments:     b.totalPayments,
			PaymentCount:      b.paymentCount,
			LastPaymentDate:   b.lastPayment,
			TotalCashPayments: b.totalCash,
			CashPaymentCount:  b.cashCount,
			StartingDebt:      b.startingDebt,
			StartingDebtDate:  b.startingDate,
			CurrentDebt:       b.startingDebt.Add(b.totalSales).Sub(b.totalPayments).Sub(b.totalCash),
			LastUpdated:       now,
			UpdateSource:      source,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CounterpartyID < summaries[j].CounterpartyID
	})
	return summaries
}

func (s *debtService) Summaries(ctx context.Context) ([]model.DebtSummary, error) {
	return s.writer.repo.List(ctx)
}

func laterDate(cur *time.Time, candidate time.Time) *time.Time {
	if cur == nil || candidate.After(*cur) {
		c := candidate
		return &c
	}
	return cur
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
