// Package postgresttest runs an in-memory PostgREST look-alike for tests.
// It understands the subset the db package speaks: eq/gte/lte filters,
// multi-key order, select projection with one embedded students(...) join,
// and POST/PATCH/DELETE with return=representation.
package postgresttest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// Request is one request as the server received it.
type Request struct {
	Method string
	Table  string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// Server is an httptest.Server backed by in-memory tables.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	tables   map[string][]map[string]any
	unique   map[string][]string
	nextID   int
	requests []Request

	// FailOn, when set, may force an error status for a request.
	FailOn func(method, table string, body any) int
}

// New starts a server. Call Close when done.
func New() *Server {
	s := &Server{
		tables: map[string][]map[string]any{},
		unique: map[string][]string{},
		nextID: 1000,
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Seed appends rows to a table.
func (s *Server) Seed(table string, rows ...map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		s.tables[table] = append(s.tables[table], clone(r))
	}
}

// Unique makes inserts that duplicate the given column tuple fail with 409.
func (s *Server) Unique(table string, columns ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unique[table] = columns
}

// Rows returns a copy of a table's rows.
func (s *Server) Rows(table string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, len(s.tables[table]))
	for i, r := range s.tables[table] {
		out[i] = clone(r)
	}
	return out
}

// Requests returns every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

func clone(r map[string]any) map[string]any {
	c := make(map[string]any, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

func str(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	table := strings.TrimPrefix(r.URL.Path, "/rest/v1/")
	raw, _ := io.ReadAll(r.Body)

	var body any
	if len(raw) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, Request{
		Method: r.Method,
		Table:  table,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
		Body:   raw,
	})

	if s.FailOn != nil {
		if status := s.FailOn(r.Method, table, body); status != 0 {
			writeJSON(w, status, map[string]string{"message": "forced failure"})
			return
		}
	}

	query := r.URL.Query()
	switch r.Method {
	case http.MethodGet:
		rows := s.match(table, query)
		sortRows(rows, query.Get("order"))
		writeJSON(w, http.StatusOK, s.project(table, rows, query.Get("select")))

	case http.MethodPost:
		var items []any
		switch b := body.(type) {
		case []any:
			items = b
		case map[string]any:
			items = []any{b}
		default:
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "expected object or array"})
			return
		}
		inserted := []map[string]any{}
		for _, it := range items {
			row, ok := it.(map[string]any)
			if !ok {
				writeJSON(w, http.StatusBadRequest, map[string]string{"message": "expected object"})
				return
			}
			if s.violates(table, row) {
				writeJSON(w, http.StatusConflict, map[string]string{"message": "duplicate key value violates unique constraint"})
				return
			}
			row = clone(row)
			if _, ok := row["id"]; !ok {
				s.nextID++
				row["id"] = s.nextID
			}
			s.tables[table] = append(s.tables[table], row)
			inserted = append(inserted, clone(row))
		}
		writeJSON(w, http.StatusCreated, inserted)

	case http.MethodPatch:
		patch, ok := body.(map[string]any)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "expected object"})
			return
		}
		updated := []map[string]any{}
		for _, row := range s.tables[table] {
			if matches(row, query) {
				for k, v := range patch {
					row[k] = v
				}
				updated = append(updated, clone(row))
			}
		}
		writeJSON(w, http.StatusOK, updated)

	case http.MethodDelete:
		kept := s.tables[table][:0]
		deleted := []map[string]any{}
		for _, row := range s.tables[table] {
			if matches(row, query) {
				deleted = append(deleted, row)
				continue
			}
			kept = append(kept, row)
		}
		s.tables[table] = kept
		writeJSON(w, http.StatusOK, deleted)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) violates(table string, row map[string]any) bool {
	cols := s.unique[table]
	if len(cols) == 0 {
		return false
	}
	for _, existing := range s.tables[table] {
		same := true
		for _, c := range cols {
			if str(existing[c]) != str(row[c]) {
				same = false
				break
			}
		}
		if same {
			return true
		}
	}
	return false
}

func (s *Server) match(table string, query url.Values) []map[string]any {
	out := []map[string]any{}
	for _, row := range s.tables[table] {
		if matches(row, query) {
			out = append(out, clone(row))
		}
	}
	return out
}

func matches(row map[string]any, query url.Values) bool {
	for col, preds := range query {
		if col == "select" || col == "order" {
			continue
		}
		for _, p := range preds {
			op, val, ok := strings.Cut(p, ".")
			if !ok {
				return false
			}
			got := str(row[col])
			switch op {
			case "eq":
				if got != val {
					return false
				}
			case "gte":
				if got < val {
					return false
				}
			case "lte":
				if got > val {
					return false
				}
			default:
				return false
			}
		}
	}
	return true
}

func sortRows(rows []map[string]any, order string) {
	if order == "" {
		return
	}
	keys := strings.Split(order, ",")
	sort.SliceStable(rows, func(i, j int) bool {
		for _, k := range keys {
			col, dir, _ := strings.Cut(k, ".")
			a, b := str(rows[i][col]), str(rows[j][col])
			if a == b {
				continue
			}
			if dir == "desc" {
				return a > b
			}
			return a < b
		}
		return false
	})
}

// project applies the select list. "students(...)" embeds the student whose
// id equals the row's student_id, or null.
func (s *Server) project(table string, rows []map[string]any, sel string) []map[string]any {
	if sel == "" {
		sel = "*"
	}
	var embed []string
	if i := strings.Index(sel, "students("); i >= 0 {
		end := strings.Index(sel[i:], ")")
		embed = strings.Split(sel[i+len("students("):i+end], ",")
		sel = strings.Trim(sel[:i]+sel[i+end+1:], ",")
	}

	var cols []string
	if sel != "*" && sel != "" {
		for _, c := range strings.Split(sel, ",") {
			cols = append(cols, strings.TrimSpace(c))
		}
	}

	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		p := row
		if cols != nil {
			p = map[string]any{}
			for _, c := range cols {
				p[c] = row[c]
			}
		}
		if embed != nil {
			var ref map[string]any
			for _, st := range s.tables["students"] {
				if str(st["id"]) == str(row["student_id"]) {
					ref = map[string]any{}
					for _, c := range embed {
						ref[c] = st[c]
					}
					break
				}
			}
			if ref == nil {
				p["students"] = nil
			} else {
				p["students"] = ref
			}
		}
		out[i] = p
	}
	return out
}
