package infra

import (
	"strings"
	"testing"
	"time"

	"github.com/BorisSolomonia/Tasty-new-sub000/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tree(t *testing.T, s string) map[string]any {
	t.Helper()
	root, err := parseResponseTree(strings.NewReader(s))
	require.NoError(t, err)
	return root
}

func TestParseResponseTreeShapes(t *testing.T) {
	root := tree(t, `<root><a>1</a><b><c>x</c></b><list><item>one</item><item>two</item></list></root>`)

	inner, ok := root["root"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "1", inner["a"])

	b, ok := inner["b"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "x", b["c"])

	list, ok := inner["list"].(map[string]any)
	require.True(t, ok)
	items, ok := list["item"].([]any)
	require.True(t, ok)
	assert.Equal(t, []any{"one", "two"}, items)
}

func TestParseResponseTreeEmptyBody(t *testing.T) {
	_, err := parseResponseTree(strings.NewReader(""))
	require.Error(t, err)
}

// The response-level status sits near the root; per-document STATUS fields live
// much deeper. The shallowest match must win.
func TestExtractStatusShallowestWins(t *testing.T) {
	root := tree(t, `<Envelope><Body><Response><Result>
		<STATUS>-1072</STATUS>
		<INVOICES><INVOICE><ID>1</ID><STATUS>2</STATUS></INVOICE></INVOICES>
	</Result></Response></Body></Envelope>`)

	assert.Equal(t, -1072, extractStatus(root))
}

func TestExtractStatusMissingIsSuccess(t *testing.T) {
	root := tree(t, `<Envelope><Body><Response><INVOICES/></Response></Body></Envelope>`)
	assert.Equal(t, rsStatusOK, extractStatus(root))
}

func TestExtractStatusLowercaseVariant(t *testing.T) {
	root := tree(t, `<envelope><body><result>1</result></body></envelope>`)
	assert.Equal(t, 1, extractStatus(root))
}

func TestCollectDocumentsBasic(t *testing.T) {
	root := tree(t, `<Envelope><Body><Result><STATUS>0</STATUS><INVOICES>
		<INVOICE>
			<ID>101</ID>
			<BUYER_TIN>405103680</BUYER_TIN>
			<BUYER_NAME>Tasty LLC</BUYER_NAME>
			<FULL_AMOUNT>1000.00</FULL_AMOUNT>
			<OPERATION_DT>2025-04-30T10:15:00</OPERATION_DT>
			<STATUS>2</STATUS>
		</INVOICE>
		<INVOICE>
			<ID>102</ID>
			<BUYER_TIN>123456789</BUYER_TIN>
			<FULL_AMOUNT>250.50</FULL_AMOUNT>
			<OPERATION_DT>2025-05-01T00:00:00</OPERATION_DT>
			<STATUS>-1</STATUS>
		</INVOICE>
	</INVOICES></Result></Body></Envelope>`)

	docs := collectDocuments(root, model.DirectionSale)
	require.Len(t, docs, 2)

	assert.Equal(t, "101", docs[0].ID)
	assert.Equal(t, "405103680", docs[0].CounterpartyID)
	assert.Equal(t, "Tasty LLC", docs[0].CounterpartyName)
	assert.True(t, docs[0].GrossAmount.Equal(decimal.RequireFromString("1000.00")))
	assert.Equal(t, time.Date(2025, 4, 30, 10, 15, 0, 0, time.UTC), docs[0].Date)
	assert.Equal(t, 2, docs[0].StatusCode)
	assert.False(t, docs[0].Cancelled())

	assert.Equal(t, "102", docs[1].ID)
	assert.True(t, docs[1].Cancelled())
}

// The same invoice id can appear twice in one response: a shallow reference
// stub without an amount next to the full record. The fuller node must win
// regardless of traversal order.
func TestCollectDocumentsRicherWins(t *testing.T) {
	full := `<INVOICE>
		<ID>7</ID>
		<BUYER_TIN>1</BUYER_TIN>
		<FULL_AMOUNT>500.00</FULL_AMOUNT>
		<OPERATION_DT>2025-05-01T00:00:00</OPERATION_DT>
		<STATUS>2</STATUS>
	</INVOICE>`
	stub := `<INVOICE><ID>7</ID><STATUS>2</STATUS></INVOICE>`

	for name, body := range map[string]string{
		"stub first": `<Result><REFS>` + stub + `</REFS><INVOICES>` + full + `</INVOICES></Result>`,
		"full first": `<Result><INVOICES>` + full + `</INVOICES><REFS>` + stub + `</REFS></Result>`,
	} {
		t.Run(name, func(t *testing.T) {
			docs := collectDocuments(tree(t, body), model.DirectionSale)
			require.Len(t, docs, 1)
			assert.True(t, docs[0].GrossAmount.Equal(decimal.RequireFromString("500.00")),
				"stub won over the full record: amount %s", docs[0].GrossAmount)
			assert.Equal(t, "1", docs[0].CounterpartyID)
		})
	}
}

func TestCollectDocumentsCamelCaseFields(t *testing.T) {
	root := tree(t, `<Result><invoices><invoice>
		<id>55</id>
		<buyerTin>999</buyerTin>
		<fullAmount>42.00</fullAmount>
		<operationDt>2025-05-02T00:00:00</operationDt>
	</invoice></invoices></Result>`)

	docs := collectDocuments(root, model.DirectionSale)
	require.Len(t, docs, 1)
	assert.Equal(t, "55", docs[0].ID)
	assert.Equal(t, "999", docs[0].CounterpartyID)
	assert.True(t, docs[0].GrossAmount.Equal(decimal.RequireFromString("42.00")))
}

func TestCollectDocumentsPurchaseDirection(t *testing.T) {
	root := tree(t, `<Result><INVOICE>
		<ID>3</ID>
		<SELLER_TIN>777</SELLER_TIN>
		<SELLER_NAME>Supplier LLC</SELLER_NAME>
		<BUYER_TIN>405103680</BUYER_TIN>
		<FULL_AMOUNT>10.00</FULL_AMOUNT>
	</INVOICE></Result>`)

	docs := collectDocuments(root, model.DirectionPurchase)
	require.Len(t, docs, 1)
	assert.Equal(t, "777", docs[0].CounterpartyID)
	assert.Equal(t, "Supplier LLC", docs[0].CounterpartyName)
}

// A bare id inside a wrapper node is not a document.
func TestCollectDocumentsIgnoresBareReferences(t *testing.T) {
	root := tree(t, `<Result><REF><ID>900</ID></REF></Result>`)
	assert.Empty(t, collectDocuments(root, model.DirectionSale))
}

func TestCollectDocumentsParsesItems(t *testing.T) {
	root := tree(t, `<Result><INVOICE>
		<ID>8</ID>
		<FULL_AMOUNT>30.00</FULL_AMOUNT>
		<ITEMS>
			<ITEM><W_NAME>Flour</W_NAME><QUANTITY>2.5</QUANTITY><UNIT_TXT>kg</UNIT_TXT></ITEM>
			<ITEM><W_NAME>Sugar</W_NAME><QUANTITY>1</QUANTITY><UNIT_TXT>kg</UNIT_TXT></ITEM>
		</ITEMS>
	</INVOICE></Result>`)

	docs := collectDocuments(root, model.DirectionSale)
	require.Len(t, docs, 1)
	require.Len(t, docs[0].Items, 2)
	assert.Equal(t, "Flour", docs[0].Items[0].Name)
	assert.Equal(t, "kg", docs[0].Items[0].Unit)
	assert.True(t, docs[0].Items[0].Quantity.Equal(decimal.RequireFromString("2.5")))
}

func TestLookupAmountPriorityAndZeroSkip(t *testing.T) {
	n := map[string]any{
		"SUM":         "99.00",
		"FULL_AMOUNT": "0.00", // present but zero — fall through to the next key
	}
	amt, ok := lookupAmount(n)
	require.True(t, ok)
	assert.True(t, amt.Equal(decimal.RequireFromString("99.00")))

	n = map[string]any{"FULL_AMOUNT": "12.00", "SUM": "99.00"}
	amt, ok = lookupAmount(n)
	require.True(t, ok)
	assert.True(t, amt.Equal(decimal.RequireFromString("12.00")))
}

func TestToCamel(t *testing.T) {
	assert.Equal(t, "fullAmount", toCamel("FULL_AMOUNT"))
	assert.Equal(t, "buyerUnId", toCamel("BUYER_UN_ID"))
	assert.Equal(t, "id", toCamel("ID"))
}

func TestMergeDocumentsBoundaryDuplicates(t *testing.T) {
	rich := model.LedgerDocument{
		ID:          "1",
		GrossAmount: decimal.RequireFromString("100.00"),
		Date:        time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	poor := model.LedgerDocument{ID: "1"}
	other := model.LedgerDocument{ID: "2", GrossAmount: decimal.RequireFromString("5.00")}

	merged := mergeDocuments([]model.LedgerDocument{poor, other, rich})
	require.Len(t, merged, 2)
	assert.Equal(t, "1", merged[0].ID)
	assert.True(t, merged[0].GrossAmount.Equal(rich.GrossAmount))
	assert.Equal(t, "2", merged[1].ID)
}
