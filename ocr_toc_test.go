package markitdown

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestParseTOCLine(t *testing.T) {
	tests := []struct {
		line      string
		wantKind  tocLineKind
		wantTitle string
	}{
		{">>> Introduction", tocLineChapter, "Introduction"},
		{"  >>> Indented Title  ", tocLineChapter, "Indented Title"},
		{"CHAPTER: Legacy Form", tocLineChapter, "Legacy Form"},
		{"MAIN_SECTION: Older Form", tocLineChapter, "Older Form"},
		{"NOT_A_TOC_PAGE", tocLineNotTOC, ""},
		{">>>", tocLineUnrecognized, ""},
		{"just some prose", tocLineUnrecognized, ""},
		{"", tocLineUnrecognized, ""},
	}

	for _, tt := range tests {
		kind, title := parseTOCLine(tt.line)
		if kind != tt.wantKind || title != tt.wantTitle {
			t.Errorf("parseTOCLine(%q) = (%d, %q), want (%d, %q)",
				tt.line, kind, title, tt.wantKind, tt.wantTitle)
		}
	}
}

func TestParseTOCResponseDeduplication(t *testing.T) {
	resp := ">>> Intro\nCHAPTER: Intro\n>>> Risks"
	titles := parseTOCResponse(resp)
	chapters := newChapterList(titles)

	want := []string{"Intro", "Risks"}
	if !reflect.DeepEqual(chapters.titles, want) {
		t.Errorf("chapters = %v, want %v", chapters.titles, want)
	}
}

func TestChapterListEmptyIsNil(t *testing.T) {
	if c := newChapterList(nil); c != nil {
		t.Errorf("newChapterList(nil) = %v, want nil", c)
	}
	var c *chapterList
	if c.contains("anything") {
		t.Error("nil chapterList should contain nothing")
	}
	if hint := c.hint(6); hint != nil {
		t.Errorf("nil chapterList hint = %v, want nil", hint)
	}
}

func TestChapterListHintLimit(t *testing.T) {
	c := newChapterList([]string{"A", "B", "C", "D"})
	if got := c.hint(2); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Errorf("hint(2) = %v, want [A B]", got)
	}
	if got := c.hint(10); !reflect.DeepEqual(got, []string{"A", "B", "C", "D"}) {
		t.Errorf("hint(10) = %v, want all titles", got)
	}
}

func TestExtractTOC(t *testing.T) {
	tests := []struct {
		name      string
		pageCount int
		responses map[int]string // page -> response; missing pages get the sentinel
		errPages  map[int]bool   // pages whose request fails
		want      []string       // nil means absent chapter list
	}{
		{
			name:      "chapters collected across pages in first-seen order",
			pageCount: 3,
			responses: map[int]string{
				2: ">>> Alpha\n>>> Beta",
				3: ">>> Beta\n>>> Gamma",
			},
			want: []string{"Alpha", "Beta", "Gamma"},
		},
		{
			name:      "all sentinel pages yield absent list",
			pageCount: 5,
			want:      nil,
		},
		{
			name:      "page failure does not abort extraction",
			pageCount: 3,
			responses: map[int]string{3: ">>> Found Anyway"},
			errPages:  map[int]bool{1: true, 2: true},
			want:      []string{"Found Anyway"},
		},
		{
			name:      "sampling capped at ten pages",
			pageCount: 25,
			responses: map[int]string{11: ">>> Beyond The Cap"},
			want:      nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeVisionClient{
				respond: func(page int) (string, error) {
					if tt.errPages[page] {
						return "", errors.New("transport error")
					}
					if resp, ok := tt.responses[page]; ok {
						return resp, nil
					}
					return tocNotTOCSentinel, nil
				},
			}
			rast := &fakeRasterizer{pages: tt.pageCount}
			p := newOCRPipeline(OCRConfig{}, newOCRClientPool([]visionClient{client}), rast)

			chapters := p.extractTOC(context.Background(), nil, tt.pageCount)
			if tt.want == nil {
				if chapters != nil {
					t.Fatalf("chapters = %v, want absent", chapters.titles)
				}
				return
			}
			if chapters == nil {
				t.Fatal("chapters absent, want present")
			}
			if !reflect.DeepEqual(chapters.titles, tt.want) {
				t.Errorf("chapters = %v, want %v", chapters.titles, tt.want)
			}
		})
	}
}

func TestExtractTOCZeroPages(t *testing.T) {
	client := &fakeVisionClient{respond: func(int) (string, error) {
		t.Error("no request should be issued for an empty document")
		return "", nil
	}}
	p := newOCRPipeline(OCRConfig{}, newOCRClientPool([]visionClient{client}), &fakeRasterizer{})

	if chapters := p.extractTOC(context.Background(), nil, 0); chapters != nil {
		t.Errorf("chapters = %v, want absent", chapters.titles)
	}
}
