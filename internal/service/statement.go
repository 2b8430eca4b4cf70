package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/BorisSolomonia/Tasty-new-sub000/internal/model"
	"github.com/BorisSolomonia/Tasty-new-sub000/internal/repository"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// ImportResult reports an ingestion pass over one statement file.
type ImportResult struct {
	Rows       int `json:"rows"`
	Imported   int `json:"imported"`
	Duplicates int `json:"duplicates"`
	Skipped    int `json:"skipped"`
}

// StatementService turns uploaded bank-statement workbooks and manual cash
// entries into immutable payment records. Identity and the afterWindow flag
// are computed here, at ingestion time, so the engine never re-derives them.
type StatementService interface {
	ImportXLSX(ctx context.Context, r io.Reader, source string) (*ImportResult, error)
	AddManualCash(ctx context.Context, counterpartyID, name string, date time.Time, amount, postBalance decimal.Decimal) (*model.Payment, error)
}

type statementService struct {
	payments repository.PaymentRepository
	cutoff   time.Time
}

func NewStatementService(payments repository.PaymentRepository, cutoff time.Time) StatementService {
	return &statementService{payments: payments, cutoff: cutoff}
}

// Statement header names recognized per column, lowercased. Banks disagree on
// naming, so each column accepts a few aliases.
var (
	headerDate    = []string{"date", "transaction date", "თარიღი"}
	headerAmount  = []string{"amount", "credit", "შემოსული თანხა"}
	headerTaxID   = []string{"partner tax id", "tax id", "tin", "საიდენტიფიკაციო კოდი"}
	headerName    = []string{"partner name", "name", "დასახელება"}
	headerBalance = []string{"balance", "post balance", "ნაშთი"}
)

var statementDateLayouts = []string{"2006-01-02", "02.01.2006", "01/02/2006", "2006-01-02 15:04:05"}

func (s *statementService) ImportXLSX(ctx context.Context, r io.Reader, source string) (*ImportResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("statement: open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("statement: read sheet %q: %w", sheet, err)
	}
	if len(rows) < 2 {
		return &ImportResult{}, nil
	}

	cols, err := mapColumns(rows[0])
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}
	var batch []model.Payment
	seen := map[string]bool{} // dedup within the file itself
	for _, row := range rows[1:] {
		result.Rows++
		p, ok := s.parseRow(row, cols, source)
		if !ok {
			result.Skipped++
			continue
		}
		if seen[p.UniqueCode] {
			result.Duplicates++
			continue
		}
		seen[p.UniqueCode] = true
		batch = append(batch, p)
	}

	inserted, err := s.payments.InsertIgnoreDuplicates(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("statement: insert payments: %w", err)
	}
	result.Imported = inserted
	result.Duplicates += len(batch) - inserted

	log.Info().
		Str("source", source).
		Int("rows", result.Rows).
		Int("imported", result.Imported).
		Int("duplicates", result.Duplicates).
		Int("skipped", result.Skipped).
		Msg("statement imported")
	return result, nil
}

func (s *statementService) AddManualCash(ctx context.Context, counterpartyID, name string, date time.Time, amount, postBalance decimal.Decimal) (*model.Payment, error) {
	p := s.newPayment(counterpartyID, name, date, amount, postBalance, model.SourceManualCash)
	inserted, err := s.payments.InsertIgnoreDuplicates(ctx, []model.Payment{p})
	if err != nil {
		return nil, fmt.Errorf("manual cash: insert: %w", err)
	}
	if inserted == 0 {
		return nil, fmt.Errorf("manual cash: payment already recorded (code %s)", p.UniqueCode)
	}
	return &p, nil
}

func (s *statementService) newPayment(counterpartyID, name string, date time.Time, amount, postBalance decimal.Decimal, source string) model.Payment {
	return model.Payment{
		UniqueCode:       PaymentIdentity(date, amount, counterpartyID, postBalance),
		CounterpartyID:   strings.TrimSpace(counterpartyID),
		CounterpartyName: strings.TrimSpace(name),
		Date:             date,
		Amount:           amount,
		PostBalance:      postBalance,
		Source:           source,
		AfterWindow:      !date.Before(s.cutoff.AddDate(0, 0, 1)),
	}
}

type columnMap struct {
	date, amount, taxID, name, balance int
}

func mapColumns(header []string) (columnMap, error) {
	cols := columnMap{date: -1, amount: -1, taxID: -1, name: -1, balance: -1}
	for i, h := range header {
		switch key := strings.ToLower(strings.TrimSpace(h)); {
		case matchHeader(key, headerDate) && cols.date < 0:
			cols.date = i
		case matchHeader(key, headerAmount) && cols.amount < 0:
			cols.amount = i
		case matchHeader(key, headerTaxID) && cols.taxID < 0:
			cols.taxID = i
		case matchHeader(key, headerName) && cols.name < 0:
			cols.name = i
		case matchHeader(key, headerBalance) && cols.balance < 0:
			cols.balance = i
		}
	}
	if cols.date < 0 || cols.amount < 0 || cols.taxID < 0 || cols.balance < 0 {
		return cols, fmt.Errorf("statement: missing required columns (need date, amount, tax id, balance; got %v)", header)
	}
	return cols, nil
}

func matchHeader(key string, aliases []string) bool {
	for _, a := range aliases {
		if key == a {
			return true
		}
	}
	return false
}

func (s *statementService) parseRow(row []string, cols columnMap, source string) (model.Payment, bool) {
	cell := func(i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	taxID := cell(cols.taxID)
	if taxID == "" {
		return model.Payment{}, false
	}

	var date time.Time
	var ok bool
	for _, layout := range statementDateLayouts {
		if t, err := time.Parse(layout, cell(cols.date)); err == nil {
			date, ok = t, true
			break
		}
	}
	if !ok {
		return model.Payment{}, false
	}

	amount, err := decimal.NewFromString(strings.ReplaceAll(cell(cols.amount), ",", ""))
	if err != nil || amount.IsZero() {
		return model.Payment{}, false
	}
	balance, err := decimal.NewFromString(strings.ReplaceAll(cell(cols.balance), ",", ""))
	if err != nil {
		return model.Payment{}, false
	}

	return s.newPayment(taxID, cell(cols.name), date, amount, balance, source), true
}
