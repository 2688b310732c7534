package history

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Export formats.
const (
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
)

const exportVersion = "1.0"

// Document is the JSON export and import format.
type Document struct {
	History    []Entry   `json:"history"`
	ExportDate time.Time `json:"exportDate"`
	Version    string    `json:"version"`
}

// Export renders the history in the given format.
func (m *Manager) Export(format string) ([]byte, error) {
	entries := m.All()
	switch strings.ToLower(format) {
	case FormatJSON:
		return json.MarshalIndent(Document{History: entries, ExportDate: m.now().UTC(), Version: exportVersion}, "", "  ")
	case FormatCSV:
		return exportCSV(entries)
	case FormatMarkdown, "md":
		return exportMarkdown(entries, m.now()), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

func exportCSV(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"time", "template", "provider", "original", "optimized", "rating"}); err != nil {
		return nil, err
	}
	for _, e := range entries {
		rating := ""
		if e.Rating > 0 {
			rating = strconv.Itoa(e.Rating)
		}
		row := []string{e.Timestamp.Local().Format(time.DateTime), e.Template, e.Provider, e.Original, e.Optimized, rating}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func exportMarkdown(entries []Entry, now time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# Better Prompt History\n\nExported: %s\nTotal: %d entries\n\n", now.Format(time.DateTime), len(entries))
	for i, e := range entries {
		rating := "unrated"
		if e.Rating > 0 {
			rating = fmt.Sprintf("%d/5", e.Rating)
		}
		fmt.Fprintf(&b, "## %d. %s (%s)\n\n**Original prompt:**\n%s\n\n**Optimized prompt:**\n%s\n\n**Rating:** %s\n\n---\n\n",
			i+1, e.Timestamp.Local().Format(time.DateTime), e.Template, e.Original, e.Optimized, rating)
	}
	return []byte(b.String())
}

// ImportResult reports what Import read.
type ImportResult struct {
	Count int
	Added int
}

// Import reads a JSON export. With merge, entries whose id is not already
// present are placed before the existing ones; otherwise the history is
// replaced. The result is capped at MaxEntries.
func (m *Manager) Import(data []byte, merge bool) (ImportResult, error) {
	var doc struct {
		History *[]Entry `json:"history"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return ImportResult{}, fmt.Errorf("invalid import data: %w", err)
	}
	if doc.History == nil {
		return ImportResult{}, errors.New("invalid import data: missing history array")
	}
	imported := *doc.History
	for i := range imported {
		if imported[i].ID == "" {
			imported[i].ID = newID()
		}
		imported[i].Tags = dedupe(imported[i].Tags)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	next := imported
	added := len(imported)
	if merge {
		existing := make(map[string]bool, len(m.entries))
		for _, e := range m.entries {
			existing[e.ID] = true
		}
		next = nil
		for _, e := range imported {
			if !existing[e.ID] {
				next = append(next, e)
			}
		}
		added = len(next)
		next = append(next, m.entries...)
	}
	if len(next) > MaxEntries {
		next = next[:MaxEntries]
	}
	m.entries = next
	if err := m.save(); err != nil {
		return ImportResult{}, err
	}
	return ImportResult{Count: len(imported), Added: added}, nil
}
