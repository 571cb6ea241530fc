package svg

import (
	"encoding/xml"
	"strings"
	"testing"
)

func wellFormed(t *testing.T, doc []byte) {
	t.Helper()
	dec := xml.NewDecoder(strings.NewReader(string(doc)))
	for {
		if _, err := dec.Token(); err != nil {
			if err.Error() == "EOF" {
				return
			}
			t.Fatalf("malformed svg: %v\n%s", err, doc)
		}
	}
}

func TestLineRendersSeries(t *testing.T) {
	doc, err := Line(0, 0, []Point{{"2026-01", 100}, {"2026-02", 250}, {"2026-03", 175}}, LineOpts{
		Title:  "Income by month",
		XLabel: "Month",
		YLabel: "Income",
	})
	if err != nil {
		t.Fatalf("line: %v", err)
	}
	out := string(doc)
	if !strings.HasPrefix(out, "<svg") || !strings.HasSuffix(out, "</svg>") {
		t.Fatalf("expected svg document, got %s", out)
	}
	if got := strings.Count(out, "<circle"); got != 3 {
		t.Fatalf("expected 3 markers, got %d", got)
	}
	for _, want := range []string{"2026-02", "Income by month", "<path d=\"M"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output", want)
		}
	}
	wellFormed(t, doc)
}

func TestLineEmptyState(t *testing.T) {
	doc, err := Line(400, 300, nil, LineOpts{Title: "Income", EmptyText: "No deals yet"})
	if err != nil {
		t.Fatalf("line: %v", err)
	}
	out := string(doc)
	if !strings.Contains(out, "No deals yet") {
		t.Fatalf("expected empty state text")
	}
	if strings.Contains(out, "<circle") || strings.Contains(out, "<path") {
		t.Fatalf("empty chart must not draw a series")
	}
	wellFormed(t, doc)
}

func TestLineEscapesLabels(t *testing.T) {
	doc, err := Line(400, 300, []Point{{"<Q1 & Q2>", 1}}, LineOpts{})
	if err != nil {
		t.Fatalf("line: %v", err)
	}
	if strings.Contains(string(doc), "<Q1") {
		t.Fatalf("label not escaped")
	}
	wellFormed(t, doc)
}

func TestLineRejectsTinyViewport(t *testing.T) {
	if _, err := Line(40, 40, nil, LineOpts{Padding: 30}); err == nil {
		t.Fatalf("expected viewport error")
	}
}
