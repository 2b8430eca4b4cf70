package infra

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/BorisSolomonia/Tasty-new-sub000/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── SOAP test server ─────────────────────────────────────────────────────────

type soapCall struct {
	op         string
	su         string
	start, end time.Time
}

type rsTestServer struct {
	mu      sync.Mutex
	calls   []soapCall
	respond func(call soapCall) string
	srv     *httptest.Server
}

var (
	reSU    = regexp.MustCompile(`<su>(.*?)</su>`)
	reStart = regexp.MustCompile(`<create_date_s>(.*?)</create_date_s>`)
	reEnd   = regexp.MustCompile(`<create_date_e>(.*?)</create_date_e>`)
	reOp    = regexp.MustCompile(`http://tempuri\.org/(\w+)`)
)

func newRSTestServer(t *testing.T, respond func(call soapCall) string) *rsTestServer {
	t.Helper()
	ts := &rsTestServer{respond: respond}
	ts.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		call := soapCall{
			su: reSU.FindStringSubmatch(string(body))[1],
			op: reOp.FindStringSubmatch(r.Header.Get("SOAPAction"))[1],
		}
		call.start, err = time.Parse(soapDateLayout, reStart.FindStringSubmatch(string(body))[1])
		require.NoError(t, err)
		call.end, err = time.Parse(soapDateLayout, reEnd.FindStringSubmatch(string(body))[1])
		require.NoError(t, err)

		ts.mu.Lock()
		ts.calls = append(ts.calls, call)
		responder := ts.respond
		ts.mu.Unlock()

		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		fmt.Fprint(w, responder(call))
	}))
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *rsTestServer) callLog() []soapCall {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]soapCall(nil), ts.calls...)
}

func rsResponse(status int, invoices ...string) string {
	body := ""
	for _, inv := range invoices {
		body += inv
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>`+
		`<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>`+
		`<get_seller_invoicesResponse><get_seller_invoicesResult>`+
		`<STATUS>%d</STATUS><INVOICES>%s</INVOICES>`+
		`</get_seller_invoicesResult></get_seller_invoicesResponse>`+
		`</soap:Body></soap:Envelope>`, status, body)
}

func invoiceXML(id, buyerTIN, day, amount string) string {
	return fmt.Sprintf(`<INVOICE><ID>%s</ID><BUYER_TIN>%s</BUYER_TIN>`+
		`<FULL_AMOUNT>%s</FULL_AMOUNT><OPERATION_DT>%sT00:00:00</OPERATION_DT>`+
		`<STATUS>2</STATUS></INVOICE>`, id, buyerTIN, amount, day)
}

func newTestClient(url string) *RSClient {
	return NewRSClient(url, "123456789:shop", "secret", 5*time.Second)
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func docIDs(docs []model.LedgerDocument) []string {
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	sort.Strings(ids)
	return ids
}

// ── tests ─────────────────────────────────────────────────────────────────────

func TestFetchDocumentsSuccess(t *testing.T) {
	ts := newRSTestServer(t, func(soapCall) string {
		return rsResponse(0,
			invoiceXML("1", "405103680", "2025-05-01", "1000.00"),
			invoiceXML("2", "123456789", "2025-05-02", "250.00"),
		)
	})
	c := newTestClient(ts.srv.URL)

	docs, err := c.FetchDocuments(context.Background(), model.DirectionSale, day("2025-04-29"), day("2025-05-03"))
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, docIDs(docs))

	calls := ts.callLog()
	require.Len(t, calls, 1)
	assert.Equal(t, "get_seller_invoices", calls[0].op)
	assert.Equal(t, "123456789:shop", calls[0].su)
	assert.Equal(t, day("2025-04-29"), calls[0].start)
	assert.Equal(t, day("2025-05-03"), calls[0].end)
}

func TestFetchDocumentsPurchaseOperation(t *testing.T) {
	ts := newRSTestServer(t, func(soapCall) string { return rsResponse(1) })
	c := newTestClient(ts.srv.URL)

	_, err := c.FetchDocuments(context.Background(), model.DirectionPurchase, day("2025-05-01"), day("2025-05-02"))
	require.NoError(t, err)

	calls := ts.callLog()
	require.Len(t, calls, 1)
	assert.Equal(t, "get_buyer_invoices", calls[0].op)
}

// The service reports a missing seller context for the "tin:username" form;
// one retry with the bare username must recover.
func TestFetchDocumentsFallbackCredential(t *testing.T) {
	ts := newRSTestServer(t, func(call soapCall) string {
		if call.su == "123456789:shop" {
			return rsResponse(rsStatusSellerNotRegistered)
		}
		return rsResponse(0, invoiceXML("1", "405103680", "2025-05-01", "100.00"))
	})
	c := newTestClient(ts.srv.URL)

	docs, err := c.FetchDocuments(context.Background(), model.DirectionSale, day("2025-04-29"), day("2025-05-02"))
	require.NoError(t, err)
	require.Len(t, docs, 1)

	calls := ts.callLog()
	require.Len(t, calls, 2)
	assert.Equal(t, "123456789:shop", calls[0].su)
	assert.Equal(t, "shop", calls[1].su)
}

func TestFetchDocumentsFallbackExhausted(t *testing.T) {
	ts := newRSTestServer(t, func(soapCall) string {
		return rsResponse(rsStatusSellerNotRegistered)
	})
	c := newTestClient(ts.srv.URL)

	_, err := c.FetchDocuments(context.Background(), model.DirectionSale, day("2025-04-29"), day("2025-05-02"))
	require.Error(t, err)

	var extErr *ExternalServiceError
	require.True(t, errors.As(err, &extErr))
	assert.Equal(t, rsStatusSellerNotRegistered, extErr.Status)
	// Exactly one retry — the same fault twice is final.
	assert.Len(t, ts.callLog(), 2)
}

// When the full range is rejected as too large the client re-fetches in fixed
// 3-day windows. The merged result must cover exactly the same documents a
// single successful call would have returned.
func TestFetchDocumentsChunking(t *testing.T) {
	all := map[string]string{ // id → operation day
		"1": "2025-05-01", "2": "2025-05-02", "3": "2025-05-03",
		"4": "2025-05-04", "5": "2025-05-06", "6": "2025-05-08",
	}
	ts := newRSTestServer(t, func(call soapCall) string {
		if call.end.Sub(call.start) > chunkDays*24*time.Hour {
			return rsResponse(rsStatusRangeTooLarge)
		}
		var invoices []string
		for id, d := range all {
			od := day(d)
			if !od.Before(call.start) && od.Before(call.end) {
				invoices = append(invoices, invoiceXML(id, "405103680", d, "10.00"))
			}
		}
		return rsResponse(0, invoices...)
	})
	c := newTestClient(ts.srv.URL)

	docs, err := c.FetchDocuments(context.Background(), model.DirectionSale, day("2025-05-01"), day("2025-05-09"))
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3", "4", "5", "6"}, docIDs(docs))

	// One rejected full-range call plus ceil(8/3) = 3 window calls.
	calls := ts.callLog()
	assert.Len(t, calls, 4)
	for _, call := range calls[1:] {
		assert.LessOrEqual(t, call.end.Sub(call.start), chunkDays*24*time.Hour)
	}
}

// A document sitting on a window boundary can come back in two responses; the
// merged result must carry it once.
func TestFetchDocumentsChunkingDeduplicates(t *testing.T) {
	ts := newRSTestServer(t, func(call soapCall) string {
		if call.end.Sub(call.start) > chunkDays*24*time.Hour {
			return rsResponse(rsStatusRangeTooLarge)
		}
		return rsResponse(0, invoiceXML("boundary", "405103680", "2025-05-03", "10.00"))
	})
	c := newTestClient(ts.srv.URL)

	docs, err := c.FetchDocuments(context.Background(), model.DirectionSale, day("2025-05-01"), day("2025-05-09"))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "boundary", docs[0].ID)
}

// A single chunk-sized window the service still rejects is a known limitation:
// the partial payload is accepted instead of looping forever on smaller splits.
func TestFetchDocumentsChunkStillTooLarge(t *testing.T) {
	ts := newRSTestServer(t, func(soapCall) string {
		return rsResponse(rsStatusRangeTooLarge, invoiceXML("partial", "405103680", "2025-05-01", "10.00"))
	})
	c := newTestClient(ts.srv.URL)

	docs, err := c.FetchDocuments(context.Background(), model.DirectionSale, day("2025-05-01"), day("2025-05-03"))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "partial", docs[0].ID)
}

// Unknown fault codes are soft: the run continues with an empty result rather
// than failing outright.
func TestFetchDocumentsUnknownFaultIsSoft(t *testing.T) {
	ts := newRSTestServer(t, func(soapCall) string {
		return rsResponse(-9999, invoiceXML("1", "405103680", "2025-05-01", "10.00"))
	})
	c := newTestClient(ts.srv.URL)

	docs, err := c.FetchDocuments(context.Background(), model.DirectionSale, day("2025-05-01"), day("2025-05-02"))
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestFetchDocumentsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	c := newTestClient(srv.URL)

	_, err := c.FetchDocuments(context.Background(), model.DirectionSale, day("2025-05-01"), day("2025-05-02"))
	require.Error(t, err)

	var extErr *ExternalServiceError
	require.True(t, errors.As(err, &extErr))
	assert.Equal(t, "get_seller_invoices", extErr.Op)
}

func TestSplitRange(t *testing.T) {
	windows := splitRange(day("2025-05-01"), day("2025-05-09"), 3)
	require.Len(t, windows, 3)
	assert.Equal(t, day("2025-05-01"), windows[0].start)
	assert.Equal(t, day("2025-05-04"), windows[0].end)
	assert.Equal(t, day("2025-05-04"), windows[1].start)
	assert.Equal(t, day("2025-05-07"), windows[1].end)
	// Last window truncated to the range end.
	assert.Equal(t, day("2025-05-07"), windows[2].start)
	assert.Equal(t, day("2025-05-09"), windows[2].end)
}

func TestFallbackServiceUser(t *testing.T) {
	assert.Equal(t, "shop", fallbackServiceUser("123456789:shop"))
	assert.Equal(t, "plain", fallbackServiceUser("plain"))
}
