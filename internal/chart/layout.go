package chart

import (
	"strings"
	"unicode"
)

// DecodeLayout turns a layout-preserving text rendering (pages separated by
// form feeds, as produced by `pdftotext -layout`) into a Document. A table is
// detected wherever a header line names at least half of the code columns;
// the header's token positions define the cell boundaries of the rows below
// it, so blank cells survive as empty strings. Pages without a header get no
// tables and keep only their text.
func DecodeLayout(text string, columns []string) *Document {
	doc := &Document{}
	for _, pageText := range strings.Split(text, "\f") {
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		doc.Pages = append(doc.Pages, Page{
			Tables: detectTables(pageText, columns),
			Text:   pageText,
		})
	}
	return doc
}

type span struct {
	start, end int
	text       string
}

func tokens(line []rune) []span {
	var out []span
	i := 0
	for i < len(line) {
		if unicode.IsSpace(line[i]) {
			i++
			continue
		}
		j := i
		for j < len(line) && !unicode.IsSpace(line[j]) {
			j++
		}
		out = append(out, span{start: i, end: j, text: string(line[i:j])})
		i = j
	}
	return out
}

// headerBounds returns the starting rune offset of each cell when line is a
// header, or nil.
func headerBounds(line []rune, columns []string) []int {
	want := make(map[string]bool, len(columns))
	for _, c := range columns {
		want[strings.ToUpper(c)] = true
	}

	var codes []span
	for _, tok := range tokens(line) {
		if want[strings.ToUpper(tok.text)] {
			codes = append(codes, tok)
		}
	}
	if len(codes) < 2 || len(codes)*2 < len(columns) {
		return nil
	}

	bounds := []int{0}
	for k, tok := range codes {
		if k == 0 {
			bounds = append(bounds, max(tok.start-1, 1))
			continue
		}
		prev := codes[k-1]
		bounds = append(bounds, (prev.end+tok.start+1)/2)
	}
	return bounds
}

func detectTables(pageText string, columns []string) []Table {
	var (
		tables []Table
		cur    Table
		bounds []int
	)
	flush := func() {
		if len(cur) > 0 {
			tables = append(tables, cur)
		}
		cur = nil
	}

	for _, raw := range strings.Split(pageText, "\n") {
		line := []rune(strings.TrimRight(raw, " \t\r"))
		if b := headerBounds(line, columns); b != nil {
			flush()
			bounds = b
			cur = Table{splitAt(line, bounds)}
			continue
		}
		if bounds == nil || len(line) == 0 {
			continue
		}
		cells := splitAt(line, bounds)
		if cells[0] == "" {
			continue
		}
		cur = append(cur, cells)
	}
	flush()
	return tables
}

func splitAt(line []rune, bounds []int) []string {
	cells := make([]string, len(bounds))
	for i, start := range bounds {
		if start >= len(line) {
			break
		}
		end := len(line)
		if i+1 < len(bounds) && bounds[i+1] < end {
			end = bounds[i+1]
		}
		cells[i] = strings.TrimSpace(string(line[start:end]))
	}
	return cells
}
