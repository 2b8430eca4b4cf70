package infra

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/BorisSolomonia/Tasty-new-sub000/internal/model"

	"github.com/rs/zerolog/log"
)

// In-payload status codes reported by the revenue service. The service signals
// errors via this field inside an HTTP 200 response, not via transport failure.
const (
	rsStatusOK    = 0
	rsStatusOKAlt = 1
	// rsStatusSellerNotRegistered: the service user is not registered for the
	// seller context. Recoverable once by retrying with the fallback credential.
	rsStatusSellerNotRegistered = -1058
	// rsStatusRangeTooLarge: the requested date range exceeds the service
	// limit. Recoverable by splitting into fixed windows.
	rsStatusRangeTooLarge = -1072
)

// chunkDays is the fixed window size used when the service rejects a range as
// too large. A single window of this size is never split further.
const chunkDays = 3

const soapDateLayout = "2006-01-02T15:04:05"

// RSClient talks to the RS.ge SOAP service. It is read-only and never caches:
// every reconciliation run re-fetches documents from the service.
type RSClient struct {
	serviceURL      string
	serviceUser     string // "tin:username" form
	servicePassword string
	httpClient      *http.Client
}

func NewRSClient(serviceURL, serviceUser, servicePassword string, timeout time.Duration) *RSClient {
	return &RSClient{
		serviceURL:      serviceURL,
		serviceUser:     serviceUser,
		servicePassword: servicePassword,
		httpClient:      &http.Client{Timeout: timeout},
	}
}

func operationFor(dir model.Direction) string {
	if dir == model.DirectionPurchase {
		return "get_buyer_invoices"
	}
	return "get_seller_invoices"
}

// fallbackServiceUser derives the secondary credential from the primary one.
// Service users are provisioned as "tin:username"; when the service reports a
// missing seller context the bare username is accepted instead.
func fallbackServiceUser(su string) string {
	if i := strings.IndexByte(su, ':'); i >= 0 {
		return su[i+1:]
	}
	return su
}

// FetchDocuments retrieves all ledger documents for [start, end) in the given
// direction. Unrecoverable faults surface as *ExternalServiceError; unknown
// fault codes are treated as an empty response so one bad call cannot sink a
// whole run.
func (c *RSClient) FetchDocuments(ctx context.Context, dir model.Direction, start, end time.Time) ([]model.LedgerDocument, error) {
	return c.fetch(ctx, dir, start, end, true)
}

func (c *RSClient) fetch(ctx context.Context, dir model.Direction, start, end time.Time, allowSplit bool) ([]model.LedgerDocument, error) {
	op := operationFor(dir)

	docs, status, err := c.call(ctx, op, dir, start, end, c.serviceUser)
	if err != nil {
		return nil, &ExternalServiceError{Op: op, Err: err}
	}

	if status == rsStatusSellerNotRegistered {
		// One retry with the fallback credential; the same fault twice is final.
		log.Warn().Str("operation", op).Msg("rs: seller context missing, retrying with fallback credential")
		docs, status, err = c.call(ctx, op, dir, start, end, fallbackServiceUser(c.serviceUser))
		if err != nil {
			return nil, &ExternalServiceError{Op: op, Err: err}
		}
		if status == rsStatusSellerNotRegistered {
			return nil, &ExternalServiceError{Op: op, Status: status}
		}
	}

	switch {
	case status == rsStatusOK || status == rsStatusOKAlt:
		return docs, nil
	case status == rsStatusRangeTooLarge:
		if !allowSplit {
			// A single chunk-sized window still too large is a known service
			// limitation: accept whatever partial payload came back.
			log.Warn().
				Str("operation", op).
				Time("start", start).
				Time("end", end).
				Int("documents", len(docs)).
				Msg("rs: chunk window still too large, accepting partial response")
			return docs, nil
		}
		return c.fetchChunked(ctx, dir, start, end)
	default:
		// Unknown fault codes are soft: log and move on with nothing.
		log.Warn().
			Str("operation", op).
			Int("status", status).
			Msg("rs: unknown status code, treating response as empty")
		return nil, nil
	}
}

// fetchChunked splits [start, end) into fixed 3-day windows (last one
// truncated) and fetches them concurrently. Windows never split recursively.
func (c *RSClient) fetchChunked(ctx context.Context, dir model.Direction, start, end time.Time) ([]model.LedgerDocument, error) {
	windows := splitRange(start, end, chunkDays)
	log.Info().
		Str("direction", string(dir)).
		Int("windows", len(windows)).
		Msg("rs: date range too large, fetching in chunks")

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
		results  = make([][]model.LedgerDocument, len(windows))
	)
	for i, w := range windows {
		wg.Add(1)
		go func(i int, ws, we time.Time) {
			defer wg.Done()
			docs, err := c.fetch(ctx, dir, ws, we, false)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			results[i] = docs
		}(i, w.start, w.end)
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}

	var all []model.LedgerDocument
	for _, docs := range results {
		all = append(all, docs...)
	}
	// Window boundaries can return the same document twice.
	return mergeDocuments(all), nil
}

type dateWindow struct{ start, end time.Time }

func splitRange(start, end time.Time, days int) []dateWindow {
	var windows []dateWindow
	for s := start; s.Before(end); {
		e := s.AddDate(0, 0, days)
		if e.After(end) {
			e = end
		}
		windows = append(windows, dateWindow{start: s, end: e})
		s = e
	}
	return windows
}

// call performs one SOAP round trip and extracts the in-payload status plus
// whatever documents the response carried.
func (c *RSClient) call(ctx context.Context, op string, dir model.Direction, start, end time.Time, serviceUser string) ([]model.LedgerDocument, int, error) {
	envelope := buildEnvelope(op, serviceUser, c.servicePassword, start, end)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serviceURL, strings.NewReader(envelope))
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", "http://tempuri.org/"+op)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, 0, fmt.Errorf("service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	tree, err := parseResponseTree(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("decode response: %w", err)
	}

	status := extractStatus(tree)
	docs := collectDocuments(tree, dir)
	return docs, status, nil
}

func buildEnvelope(op, serviceUser, servicePassword string, start, end time.Time) string {
	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?>`)
	b.WriteString(`<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>`)
	fmt.Fprintf(&b, `<%s xmlns="http://tempuri.org/">`, op)
	fmt.Fprintf(&b, "<su>%s</su><sp>%s</sp>", xmlEscape(serviceUser), xmlEscape(servicePassword))
	fmt.Fprintf(&b, "<create_date_s>%s</create_date_s>", start.Format(soapDateLayout))
	// create_date_e is exclusive on our side of the contract.
	fmt.Fprintf(&b, "<create_date_e>%s</create_date_e>", end.Format(soapDateLayout))
	fmt.Fprintf(&b, "</%s>", op)
	b.WriteString(`</soap:Body></soap:Envelope>`)
	return b.String()
}

var xmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&apos;")

func xmlEscape(s string) string { return xmlEscaper.Replace(s) }
