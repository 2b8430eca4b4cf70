package service

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/BorisSolomonia/Tasty-new-sub000/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildStatement(t *testing.T, header []string, rows [][]any) io.Reader {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, h := range header {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		require.NoError(t, err)
		require.NoError(t, f.SetCellValue(sheet, cell, h))
	}
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, v))
		}
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return bytes.NewReader(buf.Bytes())
}

var statementHeader = []string{"Date", "Amount", "Partner Tax ID", "Partner Name", "Balance"}

func TestImportXLSX(t *testing.T) {
	repo := &fakePaymentRepo{}
	svc := NewStatementService(repo, date("2025-04-29"))

	r := buildStatement(t, statementHeader, [][]any{
		{"2025-05-02", "400.00", "405103680", "Tasty LLC", "600.00"},
		{"2025-05-03", "120.50", "123456789", "Other LLC", "120.50"},
	})

	res, err := svc.ImportXLSX(context.Background(), r, "BOG")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, 2, res.Imported)
	assert.Zero(t, res.Duplicates)
	assert.Zero(t, res.Skipped)

	require.Len(t, repo.payments, 2)
	p := repo.payments[0]
	assert.Equal(t, "405103680", p.CounterpartyID)
	assert.Equal(t, "BOG", p.Source)
	assert.True(t, p.Amount.Equal(dec("400.00")))
	assert.True(t, p.PostBalance.Equal(dec("600.00")))
	assert.True(t, p.AfterWindow)
	assert.Equal(t, PaymentIdentity(p.Date, p.Amount, "405103680", p.PostBalance), p.UniqueCode)
}

// Re-importing the same statement, or an overlapping one, writes nothing new.
func TestImportXLSXIdempotent(t *testing.T) {
	repo := &fakePaymentRepo{}
	svc := NewStatementService(repo, date("2025-04-29"))

	rows := [][]any{
		{"2025-05-02", "400.00", "405103680", "Tasty LLC", "600.00"},
	}
	_, err := svc.ImportXLSX(context.Background(), buildStatement(t, statementHeader, rows), "BOG")
	require.NoError(t, err)

	res, err := svc.ImportXLSX(context.Background(), buildStatement(t, statementHeader, rows), "BOG")
	require.NoError(t, err)
	assert.Zero(t, res.Imported)
	assert.Equal(t, 1, res.Duplicates)
	assert.Len(t, repo.payments, 1)
}

// Two same-day transfers with the same amount are both kept when their
// post-transaction balances differ, and collapsed when they don't.
func TestImportXLSXSameDaySameAmount(t *testing.T) {
	repo := &fakePaymentRepo{}
	svc := NewStatementService(repo, date("2025-04-29"))

	r := buildStatement(t, statementHeader, [][]any{
		{"2025-06-10", "1410.00", "405103680", "Tasty LLC", "2322.46"},
		{"2025-06-10", "1410.00", "405103680", "Tasty LLC", "6773.46"},
		{"2025-06-10", "1410.00", "405103680", "Tasty LLC", "6773.46"},
	})

	res, err := svc.ImportXLSX(context.Background(), r, "BOG")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 1, res.Duplicates)
}

func TestImportXLSXSkipsMalformedRows(t *testing.T) {
	repo := &fakePaymentRepo{}
	svc := NewStatementService(repo, date("2025-04-29"))

	r := buildStatement(t, statementHeader, [][]any{
		{"2025-05-02", "400.00", "", "No Tax ID", "600.00"},
		{"not-a-date", "400.00", "1", "Bad Date", "600.00"},
		{"2025-05-02", "0", "1", "Zero Amount", "600.00"},
		{"2025-05-02", "abc", "1", "Bad Amount", "600.00"},
		{"2025-05-02", "400.00", "2", "Good", "600.00"},
	})

	res, err := svc.ImportXLSX(context.Background(), r, "BOG")
	require.NoError(t, err)
	assert.Equal(t, 5, res.Rows)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 4, res.Skipped)
}

func TestImportXLSXGeorgianHeaders(t *testing.T) {
	repo := &fakePaymentRepo{}
	svc := NewStatementService(repo, date("2025-04-29"))

	header := []string{"თარიღი", "შემოსული თანხა", "საიდენტიფიკაციო კოდი", "დასახელება", "ნაშთი"}
	r := buildStatement(t, header, [][]any{
		{"02.01.2026", "1,250.00", "405103680", "გემრიელი შპს", "1,250.00"},
	})

	res, err := svc.ImportXLSX(context.Background(), r, "TBC")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	require.Len(t, repo.payments, 1)
	assert.True(t, repo.payments[0].Amount.Equal(dec("1250.00")))
	assert.Equal(t, date("2026-01-02"), repo.payments[0].Date)
}

func TestImportXLSXMissingColumns(t *testing.T) {
	svc := NewStatementService(&fakePaymentRepo{}, date("2025-04-29"))

	r := buildStatement(t, []string{"Date", "Amount"}, [][]any{
		{"2025-05-02", "400.00"},
	})

	_, err := svc.ImportXLSX(context.Background(), r, "BOG")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required columns")
}

func TestAddManualCash(t *testing.T) {
	repo := &fakePaymentRepo{}
	svc := NewStatementService(repo, date("2025-04-29"))
	ctx := context.Background()

	p, err := svc.AddManualCash(ctx, "405103680", "Tasty LLC", date("2025-05-10"), dec("50.00"), dec("0"))
	require.NoError(t, err)
	assert.Equal(t, model.SourceManualCash, p.Source)
	assert.True(t, p.Cash())
	assert.True(t, p.AfterWindow)

	// Exact duplicate entry is rejected.
	_, err = svc.AddManualCash(ctx, "405103680", "Tasty LLC", date("2025-05-10"), dec("50.00"), dec("0"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already recorded")
}

func TestAddManualCashBeforeWindow(t *testing.T) {
	repo := &fakePaymentRepo{}
	svc := NewStatementService(repo, date("2025-04-29"))

	// Payment dated on the cutoff itself belongs to the historical period.
	p, err := svc.AddManualCash(context.Background(), "1", "A", date("2025-04-29"), dec("10.00"), dec("0"))
	require.NoError(t, err)
	assert.False(t, p.AfterWindow)
}
