package markitdown

import (
	"strings"
	"testing"
)

func TestAssemblePages(t *testing.T) {
	outcomes := []pageOutcome{
		{content: "first page", ok: true},
		{}, // failed
		{content: "third page", ok: true},
	}

	got := assemblePages(outcomes)

	wantInOrder := []string{
		"<!-- Page 1 -->",
		"first page",
		"<!-- OCR failed for page 2 -->",
		"<!-- Page 3 -->",
		"third page",
	}
	pos := 0
	for _, want := range wantInOrder {
		idx := strings.Index(got[pos:], want)
		if idx < 0 {
			t.Fatalf("assembled output missing %q (after offset %d):\n%s", want, pos, got)
		}
		pos += idx + len(want)
	}

	if n := strings.Count(got, pageDelimiter); n != 2 {
		t.Errorf("got %d page delimiters, want 2", n)
	}
}

func TestAssemblePagesSinglePage(t *testing.T) {
	got := assemblePages([]pageOutcome{{content: "only page", ok: true}})
	if got != "only page" {
		t.Errorf("single page output = %q, want content without page marker", got)
	}
}

func TestAssemblePagesAllFailed(t *testing.T) {
	got := assemblePages([]pageOutcome{{}, {}})
	for _, want := range []string{"<!-- OCR failed for page 1 -->", "<!-- OCR failed for page 2 -->"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing placeholder %q:\n%s", want, got)
		}
	}
}
