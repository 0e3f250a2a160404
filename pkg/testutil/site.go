package testutil

import (
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/mapdiff/pkg/model"
)

// PartitionParam is the query parameter the fake site selects partitions by.
const PartitionParam = "map"

// Site is a fake stats host. Each partition is served as a page carrying
// the partition selector and the serialized rows, in the shape the default
// source config expects.
type Site struct {
	Server   *httptest.Server
	Baseline string

	mu     sync.Mutex
	tables map[string]model.SnapshotTable
	order  []string
	names  map[string]string
	down   map[string]bool
	hits   map[string]int
}

// NewSite starts a site serving tables. order lists the comparison
// partitions in selector order; the baseline always comes first.
func NewSite(t testing.TB, baseline string, tables map[string]model.SnapshotTable, order []string) *Site {
	t.Helper()
	s := &Site{
		Baseline: baseline,
		tables:   tables,
		order:    order,
		names:    map[string]string{},
		down:     map[string]bool{},
		hits:     map[string]int{},
	}
	s.Server = httptest.NewServer(s)
	t.Cleanup(s.Server.Close)
	return s
}

// GeneratedSite serves the tables of g under the default baseline ID.
func GeneratedSite(t testing.TB, g *Generator, baseline string) *Site {
	t.Helper()
	return NewSite(t, baseline, g.Tables(baseline), g.PartitionIDs())
}

// Location returns the filter context of partition with extra filters.
func (s *Site) Location(t testing.TB, partition string, filters url.Values) model.FilterContext {
	t.Helper()
	q := url.Values{}
	for k, v := range filters {
		q[k] = v
	}
	q.Set(PartitionParam, partition)
	fc, err := model.NewFilterContext(s.Server.URL+"/heroes?"+q.Encode(), PartitionParam)
	if err != nil {
		t.Fatalf("location: %v", err)
	}
	return fc
}

// SetName sets the selector label of a partition.
func (s *Site) SetName(partition, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names[partition] = name
}

// SetDown makes a partition answer 503.
func (s *Site) SetDown(partition string, down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down[partition] = down
}

// Hits returns how many requests partition received.
func (s *Site) Hits(partition string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[partition]
}

// ServeHTTP implements http.Handler.
func (s *Site) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Query().Get(PartitionParam)
	if p == "" {
		p = s.Baseline
	}

	s.mu.Lock()
	s.hits[p]++
	down := s.down[p]
	table, ok := s.tables[p]
	s.mu.Unlock()

	switch {
	case down:
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	case !ok:
		http.NotFound(w, r)
		return
	}

	rows, err := RowsJSON(table)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	fmt.Fprintf(w, "<html><body>\n%s\n<blz-data-table class=\"herostats-data-table\" allrows=\"%s\"></blz-data-table>\n</body></html>",
		s.selectorHTML(p), html.EscapeString(rows))
}

func (s *Site) selectorHTML(current string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	b.WriteString(`<select id="filter-map-select">`)
	for _, id := range append([]string{s.Baseline}, s.order...) {
		name := s.names[id]
		if name == "" {
			name = id
		}
		sel := ""
		if id == current {
			sel = " selected"
		}
		fmt.Fprintf(&b, "\n  <option value=\"%s\"%s>%s</option>", html.EscapeString(id), sel, html.EscapeString(name))
	}
	b.WriteString("\n</select>")
	return b.String()
}

type encodedRow struct {
	ID    string `json:"id"`
	Cells struct {
		Name     string   `json:"name"`
		WinRate  *float64 `json:"winrate"`
		PickRate *float64 `json:"pickrate"`
	} `json:"cells"`
}

// RowsJSON serializes a table the way the host embeds it, ordered by
// subject ID.
func RowsJSON(t model.SnapshotTable) (string, error) {
	rows := make([]encodedRow, 0, len(t))
	for _, id := range t.SubjectIDs() {
		var r encodedRow
		r.ID = id
		r.Cells.Name = t[id].Name
		r.Cells.WinRate = t[id].WinRate
		r.Cells.PickRate = t[id].PickRate
		rows = append(rows, r)
	}
	data, err := json.Marshal(rows)
	return string(data), err
}
