package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"golang.org/x/net/html"

	"github.com/vanderheijden86/mapdiff/pkg/metrics"
	"github.com/vanderheijden86/mapdiff/pkg/model"
)

// Selector is a single compound selector of the forms "tag", "tag.class",
// "tag#id", ".class" or "#id". It is all the host page needs; descendant
// combinators are not supported.
type Selector struct {
	Tag   string
	ID    string
	Class string
}

// ParseSelector parses s into a Selector.
func ParseSelector(s string) Selector {
	var sel Selector
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '#'); idx >= 0 {
		sel.ID = s[idx+1:]
		s = s[:idx]
	}
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		sel.Class = s[idx+1:]
		s = s[:idx]
	}
	sel.Tag = strings.ToLower(s)
	return sel
}

// Matches reports whether n is an element satisfying the selector.
func (s Selector) Matches(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if s.Tag != "" && n.Data != s.Tag {
		return false
	}
	if s.ID != "" && attr(n, "id") != s.ID {
		return false
	}
	if s.Class != "" {
		found := false
		for _, c := range strings.Fields(attr(n, "class")) {
			if c == s.Class {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Find returns the first matching node in document order, or nil.
func (s Selector) Find(root *html.Node) *html.Node {
	if root == nil {
		return nil
	}
	if s.Matches(root) {
		return root
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if n := s.Find(c); n != nil {
			return n
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func lookupAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// metricValue accepts a JSON number, a numeric string, or null.
type metricValue struct {
	v *float64
}

func (m *metricValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		m.v = nil
		return nil
	}
	if data[0] == '"' {
		s, err := strconv.Unquote(string(data))
		if err != nil {
			return err
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "%")
		if s == "" {
			m.v = nil
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("metric %q is not numeric", s)
		}
		m.v = &f
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	m.v = &f
	return nil
}

type row struct {
	ID    string `json:"id"`
	Cells struct {
		Name     string      `json:"name"`
		WinRate  metricValue `json:"winrate"`
		PickRate metricValue `json:"pickrate"`
	} `json:"cells"`
}

// DecodeRows decodes the serialized rows payload into a table. A null
// payload or a row without an id makes the whole payload malformed.
func DecodeRows(raw []byte) (model.SnapshotTable, error) {
	table, _, err := decodeRows(raw)
	return table, err
}

// decodeRows also returns the subject IDs in payload order, which is the
// order the host displays them in. Duplicate IDs keep their first position.
func decodeRows(raw []byte) (model.SnapshotTable, []string, error) {
	var rows []row
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, nil, err
	}
	if rows == nil {
		return nil, nil, errors.New("rows payload is null")
	}
	table := make(model.SnapshotTable, len(rows))
	order := make([]string, 0, len(rows))
	for i, r := range rows {
		if r.ID == "" {
			return nil, nil, fmt.Errorf("row %d has no id", i)
		}
		if _, dup := table[r.ID]; !dup {
			order = append(order, r.ID)
		}
		table[r.ID] = model.SubjectStats{
			Name:     r.Cells.Name,
			WinRate:  r.Cells.WinRate.v,
			PickRate: r.Cells.PickRate.v,
		}
	}
	return table, order, nil
}

// Page is everything mapdiff reads from one host document.
type Page struct {
	Table      model.SnapshotTable
	Rows       []string          // Subject IDs in display order
	Partitions []model.Partition // Comparison partitions; the baseline is excluded
	Selected   string            // Partition marked selected in the selector, if any
}

// Parser extracts tables and partition lists from host documents.
type Parser struct {
	Table    Selector
	RowsAttr string
	Selector Selector
	Baseline string
}

// ParseTable parses r and returns its snapshot table.
func (p Parser) ParseTable(r io.Reader) (model.SnapshotTable, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, &ParseError{Reason: "invalid html", Err: err}
	}
	table, _, err := p.table(doc)
	return table, err
}

// ParsePage parses r into a Page. The partition list may be empty when the
// document has no selector; the table is required.
func (p Parser) ParsePage(r io.Reader) (*Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, &ParseError{Reason: "invalid html", Err: err}
	}
	table, rows, err := p.table(doc)
	if err != nil {
		return nil, err
	}
	page := &Page{Table: table, Rows: rows}
	page.Partitions, page.Selected = p.partitions(doc)
	return page, nil
}

func (p Parser) table(doc *html.Node) (model.SnapshotTable, []string, error) {
	defer metrics.Timer(metrics.SnapshotParse)()

	el := p.Table.Find(doc)
	if el == nil {
		return nil, nil, &ParseError{Reason: "data element not found"}
	}
	raw, ok := lookupAttr(el, p.RowsAttr)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, nil, &ParseError{Reason: fmt.Sprintf("attribute %q missing", p.RowsAttr)}
	}
	table, order, err := decodeRows([]byte(raw))
	if err != nil {
		return nil, nil, &ParseError{Reason: "malformed rows", Err: err}
	}
	return table, order, nil
}

func (p Parser) partitions(doc *html.Node) ([]model.Partition, string) {
	sel := p.Selector.Find(doc)
	if sel == nil {
		return nil, ""
	}
	var (
		out      []model.Partition
		selected string
	)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "option" {
			text := textContent(n)
			value, ok := lookupAttr(n, "value")
			if !ok {
				value = text
			}
			if _, isSel := lookupAttr(n, "selected"); isSel && selected == "" {
				selected = value
			}
			if value != "" && value != p.Baseline {
				out = append(out, model.Partition{ID: value, DisplayName: text})
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(sel)
	return out, selected
}
