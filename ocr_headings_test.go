package markitdown

import "testing"

func TestNormalizeHeadings(t *testing.T) {
	tests := []struct {
		name     string
		chapters []string
		input    string
		want     string
	}{
		{
			name:     "demote non-chapter H1 and keep chapter H1",
			chapters: []string{"Overview"},
			input:    "## Overview\n## Details\n# Misc",
			want:     "# Overview\n## Details\n## Misc",
		},
		{
			name:     "promote chapter H2",
			chapters: []string{"Methods"},
			input:    "## Methods\ntext",
			want:     "# Methods\ntext",
		},
		{
			name:     "case-insensitive match preserves heading case",
			chapters: []string{"Introduction"},
			input:    "# INTRODUCTION",
			want:     "# INTRODUCTION",
		},
		{
			name:     "deep headings untouched even when matching",
			chapters: []string{"Overview"},
			input:    "### Overview\n#### Overview",
			want:     "### Overview\n#### Overview",
		},
		{
			name:     "short plain line matching chapter becomes H1",
			chapters: []string{"Risks"},
			input:    "some prose\nRisks\nmore prose",
			want:     "some prose\n# Risks\nmore prose",
		},
		{
			name:     "non-matching H2 left alone",
			chapters: []string{"Overview"},
			input:    "## Appendix",
			want:     "## Appendix",
		},
		{
			name:     "plain line matching with surrounding whitespace",
			chapters: []string{"Summary"},
			input:    "  Summary  ",
			want:     "# Summary",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chapters := newChapterList(tt.chapters)
			got := normalizeHeadings(tt.input, chapters)
			if got != tt.want {
				t.Errorf("normalizeHeadings() = %q, want %q", got, tt.want)
			}

			// Re-running on normalized output must be a no-op.
			again := normalizeHeadings(got, chapters)
			if again != got {
				t.Errorf("not idempotent: second pass = %q, first pass = %q", again, got)
			}
		})
	}
}

func TestNormalizeHeadingsNoChapters(t *testing.T) {
	input := "# Anything\n## Goes\nplain"
	if got := normalizeHeadings(input, nil); got != input {
		t.Errorf("normalizeHeadings with nil chapters = %q, want unchanged input", got)
	}
}

func TestNormalizeHeadingsLongLineNotPromoted(t *testing.T) {
	long := "Overview of the system architecture and its many components, subsystems, and assorted integration concerns"
	if len(long) < shortHeadingThreshold {
		t.Fatal("test line must exceed the short-line threshold")
	}
	chapters := newChapterList([]string{long})
	if got := normalizeHeadings(long, chapters); got != long {
		t.Errorf("line of %d chars was promoted, threshold is %d", len(long), shortHeadingThreshold)
	}
}
