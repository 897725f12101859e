package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/raysh454/authprobe/internal/jsonutil"
)

// Chunk is one inserted or deleted run of text.
type Chunk struct {
	Type    string `json:"type"` // "added" or "removed"
	Content string `json:"content"`
}

// EntryDiff compares the entries with the same name in two reports.
type EntryDiff struct {
	Name      string
	OnlyIn    string // "a" or "b" when the probe ran in one report only
	StatusA   int
	StatusB   int
	ErrorA    string
	ErrorB    string
	Headers   []string
	BodyDiffs []Chunk
}

// Changed reports whether anything differs.
func (d EntryDiff) Changed() bool {
	return d.OnlyIn != "" || d.StatusA != d.StatusB || d.ErrorA != d.ErrorB ||
		len(d.Headers) > 0 || len(d.BodyDiffs) > 0
}

// volatileHeaders change on every response and are not compared.
var volatileHeaders = map[string]bool{
	"date":                    true,
	"age":                     true,
	"x-request-id":            true,
	"sb-request-id":           true,
	"cf-ray":                  true,
	"x-kong-upstream-latency": true,
	"x-kong-proxy-latency":    true,
	"set-cookie":              true,
	"etag":                    true,
	"content-length":          true,
}

// Diff matches entries by name, in a's order followed by b-only entries.
func Diff(a, b *Report) []EntryDiff {
	byName := make(map[string]Entry, len(b.Entries))
	for _, e := range b.Entries {
		byName[e.Name] = e
	}
	seen := make(map[string]bool, len(a.Entries))

	var out []EntryDiff
	for _, ea := range a.Entries {
		seen[ea.Name] = true
		eb, ok := byName[ea.Name]
		if !ok {
			out = append(out, EntryDiff{Name: ea.Name, OnlyIn: "a", StatusA: ea.Status, ErrorA: ea.Error})
			continue
		}
		out = append(out, diffEntry(ea, eb))
	}
	for _, eb := range b.Entries {
		if !seen[eb.Name] {
			out = append(out, EntryDiff{Name: eb.Name, OnlyIn: "b", StatusB: eb.Status, ErrorB: eb.Error})
		}
	}
	return out
}

func diffEntry(a, b Entry) EntryDiff {
	return EntryDiff{
		Name:      a.Name,
		StatusA:   a.Status,
		StatusB:   b.Status,
		ErrorA:    a.Error,
		ErrorB:    b.Error,
		Headers:   diffHeaders(a.Headers, b.Headers),
		BodyDiffs: diffText(bodyText(a), bodyText(b)),
	}
}

// bodyText prefers the parsed JSON, re-encoded with sorted keys, so that key
// order and whitespace do not show up as changes.
func bodyText(e Entry) string {
	if e.JSON != nil {
		if b, err := jsonutil.MarshalIndent(e.JSON, "", "  "); err == nil {
			return string(b)
		}
	}
	return e.Body
}

func diffText(a, b string) []Chunk {
	if a == b {
		return nil
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(a, b, true))

	var chunks []Chunk
	for _, d := range diffs {
		var typ string
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			typ = "added"
		case diffmatchpatch.DiffDelete:
			typ = "removed"
		default:
			continue
		}
		if strings.TrimSpace(d.Text) == "" {
			continue
		}
		chunks = append(chunks, Chunk{Type: typ, Content: d.Text})
	}
	return chunks
}

// diffHeaders lists header names whose values differ, ignoring volatile ones.
func diffHeaders(a, b map[string][]string) []string {
	norm := func(h map[string][]string) map[string]string {
		out := make(map[string]string, len(h))
		for k, vs := range h {
			k = strings.ToLower(k)
			if volatileHeaders[k] {
				continue
			}
			out[k] = strings.Join(vs, ", ")
		}
		return out
	}
	na, nb := norm(a), norm(b)

	var changed []string
	for k, va := range na {
		if vb, ok := nb[k]; !ok || va != vb {
			changed = append(changed, k)
		}
	}
	for k := range nb {
		if _, ok := na[k]; !ok {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed
}

// WriteDiff prints diffs in a compact, human-readable form.
func WriteDiff(w io.Writer, a, b *Report, diffs []EntryDiff) {
	fmt.Fprintf(w, "--- a: %s (%s)\n+++ b: %s (%s)\n", a.Plan, a.StartedAt.Format("2006-01-02 15:04:05"), b.Plan, b.StartedAt.Format("2006-01-02 15:04:05"))
	unchanged := 0
	for _, d := range diffs {
		if !d.Changed() {
			unchanged++
			continue
		}
		switch d.OnlyIn {
		case "a":
			fmt.Fprintf(w, "\n[%s] only in a (status %d)\n", d.Name, d.StatusA)
			continue
		case "b":
			fmt.Fprintf(w, "\n[%s] only in b (status %d)\n", d.Name, d.StatusB)
			continue
		}
		fmt.Fprintf(w, "\n[%s]\n", d.Name)
		if d.StatusA != d.StatusB {
			fmt.Fprintf(w, "  status: %d -> %d\n", d.StatusA, d.StatusB)
		}
		if d.ErrorA != d.ErrorB {
			fmt.Fprintf(w, "  error: %q -> %q\n", d.ErrorA, d.ErrorB)
		}
		if len(d.Headers) > 0 {
			fmt.Fprintf(w, "  headers changed: %s\n", strings.Join(d.Headers, ", "))
		}
		for _, c := range d.BodyDiffs {
			sign := "+"
			if c.Type == "removed" {
				sign = "-"
			}
			fmt.Fprintf(w, "  %s %s\n", sign, strings.ReplaceAll(strings.TrimSpace(c.Content), "\n", "\n    "))
		}
	}
	fmt.Fprintf(w, "\n%d unchanged, %d changed\n", unchanged, len(diffs)-unchanged)
}
