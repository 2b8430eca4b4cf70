package infra

// rs_parse.go
// The RS.ge responses are deeply nested and inconsistently cased: documents
// show up at several depths, sometimes twice for the same id (a shallow stub
// missing the amount next to a fuller record). Instead of per-shape structs the
// response is decoded into a generic tree and walked breadth-first, collecting
// candidate nodes and merging duplicates with a richer-wins rule. A naive
// first-wins policy here silently zeroes out valid sales amounts.

import (
	"encoding/xml"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/BorisSolomonia/Tasty-new-sub000/internal/model"

	"github.com/shopspring/decimal"
)

// Traversal bounds — a malformed or hostile payload must not pin the worker.
const (
	maxTreeNodes = 50000
	maxTreeDepth = 24
)

// parseResponseTree decodes an XML document into a generic tree: element nodes
// become map[string]any, repeated sibling names become []any, and leaf
// elements become their trimmed text content.
func parseResponseTree(r io.Reader) (map[string]any, error) {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, errors.New("empty response body")
		}
		if se, ok := tok.(xml.StartElement); ok {
			val, err := decodeElement(dec, 0)
			if err != nil {
				return nil, err
			}
			return map[string]any{se.Name.Local: val}, nil
		}
	}
}

func decodeElement(dec *xml.Decoder, depth int) (any, error) {
	if depth > maxTreeDepth {
		if err := dec.Skip(); err != nil {
			return nil, err
		}
		return "", nil
	}

	children := map[string]any{}
	var text strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := decodeElement(dec, depth+1)
			if err != nil {
				return nil, err
			}
			name := t.Name.Local
			if prev, ok := children[name]; ok {
				if list, ok := prev.([]any); ok {
					children[name] = append(list, child)
				} else {
					children[name] = []any{prev, child}
				}
			} else {
				children[name] = child
			}
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			if len(children) > 0 {
				return children, nil
			}
			return strings.TrimSpace(text.String()), nil
		}
	}
}

// extractStatus finds the response-level numeric status. Breadth-first order
// matters: the response status sits near the root while per-document STATUS
// fields live much deeper, so the shallowest match wins. A response with no
// status field at all is treated as success.
func extractStatus(root map[string]any) int {
	statusKeys := []string{"STATUS", "Status", "status", "RESULT", "Result", "result"}

	queue := []map[string]any{root}
	visited := 0
	for len(queue) > 0 && visited < maxTreeNodes {
		n := queue[0]
		queue = queue[1:]
		visited++

		for _, k := range statusKeys {
			if raw, ok := n[k].(string); ok {
				if v, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
					return v
				}
			}
		}
		for _, v := range n {
			queue = appendMaps(queue, v)
		}
	}
	return rsStatusOK
}

func appendMaps(queue []map[string]any, v any) []map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return append(queue, t)
	case []any:
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				queue = append(queue, m)
			}
		}
	}
	return queue
}

// collectDocuments walks the tree collecting every node that looks like a
// ledger document, deduplicating by id. When the same id appears twice the
// richer representation is kept.
func collectDocuments(root map[string]any, dir model.Direction) []model.LedgerDocument {
	type entry struct {
		node  map[string]any
		score int
		pos   int
	}
	best := map[string]*entry{}
	var order []string

	queue := []map[string]any{root}
	visited := 0
	for len(queue) > 0 && visited < maxTreeNodes {
		n := queue[0]
		queue = queue[1:]
		visited++

		if id, ok := documentID(n); ok && isDocumentCandidate(n) {
			score := richness(n)
			if prev, seen := best[id]; seen {
				if score > prev.score {
					prev.node, prev.score = n, score
				}
			} else {
				best[id] = &entry{node: n, score: score, pos: len(order)}
				order = append(order, id)
			}
		}
		for _, v := range n {
			queue = appendMaps(queue, v)
		}
	}

	docs := make([]model.LedgerDocument, 0, len(order))
	for _, id := range order {
		docs = append(docs, buildDocument(id, best[id].node, dir))
	}
	return docs
}

var idKeys = []string{"ID", "INV_ID", "INVOICE_ID", "WAYBILL_ID"}

func documentID(n map[string]any) (string, bool) {
	v, ok := lookup(n, idKeys...)
	return v, ok && v != ""
}

// isDocumentCandidate requires an id plus at least one amount, counterparty,
// status, or date field. The id alone is not enough — wrapper nodes often
// carry a bare reference id.
func isDocumentCandidate(n map[string]any) bool {
	if _, ok := lookupAmount(n); ok {
		return true
	}
	if _, ok := lookup(n, counterpartyKeys(model.DirectionSale)...); ok {
		return true
	}
	if _, ok := lookup(n, counterpartyKeys(model.DirectionPurchase)...); ok {
		return true
	}
	if _, ok := lookup(n, "STATUS"); ok {
		return true
	}
	_, ok := lookupDate(n)
	return ok
}

// richness scores how complete a candidate node is. Amount presence is
// weighted most heavily, then date, then counterparty ids, then the raw field
// count as the tie-breaker.
func richness(n map[string]any) int {
	score := 0
	if _, ok := lookupAmount(n); ok {
		score += 1000
	}
	if _, ok := lookupDate(n); ok {
		score += 100
	}
	if _, ok := lookup(n, "BUYER_TIN", "BUYER_UN_ID"); ok {
		score += 10
	}
	if _, ok := lookup(n, "SELLER_TIN", "SELLER_UN_ID"); ok {
		score += 10
	}
	for _, v := range n {
		if _, ok := v.(string); ok {
			score++
		}
	}
	return score
}

func buildDocument(id string, n map[string]any, dir model.Direction) model.LedgerDocument {
	doc := model.LedgerDocument{ID: id, Direction: dir}

	if amt, ok := lookupAmount(n); ok {
		doc.GrossAmount = amt
	}
	if dt, ok := lookupDate(n); ok {
		doc.Date = dt
	}
	if raw, ok := lookup(n, "STATUS"); ok {
		if v, err := strconv.Atoi(raw); err == nil {
			doc.StatusCode = v
		}
	}
	doc.CounterpartyID, _ = lookup(n, counterpartyKeys(dir)...)
	doc.CounterpartyName, _ = lookup(n, counterpartyNameKeys(dir)...)
	doc.Items = buildItems(n)
	return doc
}

// counterpartyKeys: on a sales document the counterparty is the buyer, on a
// purchase document the seller.
func counterpartyKeys(dir model.Direction) []string {
	if dir == model.DirectionPurchase {
		return []string{"SELLER_TIN", "SELLER_UN_ID"}
	}
	return []string{"BUYER_TIN", "BUYER_UN_ID"}
}

func counterpartyNameKeys(dir model.Direction) []string {
	if dir == model.DirectionPurchase {
		return []string{"SELLER_NAME", "NAME"}
	}
	return []string{"BUYER_NAME", "NAME"}
}

func buildItems(n map[string]any) []model.LedgerItem {
	raw, ok := lookupRaw(n, "ITEMS", "GOODS_LIST", "INVOICE_ITEMS")
	if !ok {
		return nil
	}
	var list []any
	switch t := raw.(type) {
	case []any:
		list = t
	case map[string]any:
		// single-item lists arrive unwrapped
		for _, v := range t {
			switch inner := v.(type) {
			case []any:
				list = inner
			case map[string]any:
				list = []any{inner}
			}
		}
	}

	var items []model.LedgerItem
	for _, el := range list {
		m, ok := el.(map[string]any)
		if !ok {
			continue
		}
		var item model.LedgerItem
		item.Name, _ = lookup(m, "W_NAME", "GOODS_NAME", "NAME")
		item.Unit, _ = lookup(m, "UNIT_TXT", "UNIT")
		if q, ok := lookup(m, "QUANTITY", "AMOUNT_G"); ok {
			if d, err := decimal.NewFromString(q); err == nil {
				item.Quantity = d
			}
		}
		if item.Name != "" {
			items = append(items, item)
		}
	}
	return items
}

// ── Field lookup ─────────────────────────────────────────────────────────────

// amountKeys in priority order; each is tried in upper-snake and camelCase.
// The first non-null, non-zero value wins.
var amountKeys = []string{
	"FULL_AMOUNT", "TOTAL_AMOUNT", "NET_AMOUNT", "GROSS_AMOUNT",
	"AMOUNT", "SUM", "VALUE", "PRICE", "COST",
}

func lookupAmount(n map[string]any) (decimal.Decimal, bool) {
	for _, key := range amountKeys {
		raw, ok := lookup(n, key)
		if !ok || raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil || d.IsZero() {
			continue
		}
		return d, true
	}
	return decimal.Zero, false
}

var dateKeys = []string{"OPERATION_DT", "CREATE_DATE", "INVOICE_DATE", "DT", "DATE"}

var dateLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02.01.2006",
}

func lookupDate(n map[string]any) (time.Time, bool) {
	for _, key := range dateKeys {
		raw, ok := lookup(n, key)
		if !ok || raw == "" {
			continue
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// lookup finds the first scalar field matching any of the given upper-snake
// names, also trying the camelCase variant of each.
func lookup(n map[string]any, names ...string) (string, bool) {
	for _, name := range names {
		for _, variant := range []string{name, toCamel(name)} {
			if v, ok := n[variant].(string); ok && v != "" {
				return strings.TrimSpace(v), true
			}
		}
	}
	return "", false
}

func lookupRaw(n map[string]any, names ...string) (any, bool) {
	for _, name := range names {
		for _, variant := range []string{name, toCamel(name)} {
			if v, ok := n[variant]; ok {
				return v, true
			}
		}
	}
	return nil, false
}

// toCamel converts FULL_AMOUNT → fullAmount.
func toCamel(s string) string {
	parts := strings.Split(strings.ToLower(s), "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}

// mergeDocuments deduplicates already-extracted documents by id, keeping the
// richer representation. Used when concatenating chunked windows, where a
// boundary document can appear in two responses.
func mergeDocuments(docs []model.LedgerDocument) []model.LedgerDocument {
	byID := map[string]int{}
	var out []model.LedgerDocument
	for _, d := range docs {
		if i, seen := byID[d.ID]; seen {
			if richerDocument(d, out[i]) {
				out[i] = d
			}
			continue
		}
		byID[d.ID] = len(out)
		out = append(out, d)
	}
	return out
}

func richerDocument(a, b model.LedgerDocument) bool {
	if a.GrossAmount.IsZero() != b.GrossAmount.IsZero() {
		return !a.GrossAmount.IsZero()
	}
	if a.Date.IsZero() != b.Date.IsZero() {
		return !a.Date.IsZero()
	}
	if (a.CounterpartyID == "") != (b.CounterpartyID == "") {
		return a.CounterpartyID != ""
	}
	return false
}
