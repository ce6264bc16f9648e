// Copyright 2026 Conductor OSS
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.

package markitdown

import (
	"context"
	"log/slog"
	"strings"
)

// tocNotTOCSentinel is what the model is told to answer for pages that are
// not a table of contents.
const tocNotTOCSentinel = "NOT_A_TOC_PAGE"

const tocPrompt = `You are looking at a single page of a document. If this page is a table of contents, list every chapter or top-level section title it shows, one per line, each prefixed with ">>> ". Example:

>>> Introduction
>>> Methods

If this page is NOT a table of contents, reply with exactly ` + tocNotTOCSentinel + ` and nothing else.`

// chapterList is the ordered set of chapter titles found in a document's
// table of contents. A nil *chapterList means no structure is known; all
// methods are nil-safe. Once built it is never mutated.
type chapterList struct {
	titles []string
	lookup map[string]struct{} // lower-cased titles
}

// newChapterList deduplicates titles by exact match, preserving first-seen
// order, and returns nil when no titles remain.
func newChapterList(titles []string) *chapterList {
	if len(titles) == 0 {
		return nil
	}
	c := &chapterList{lookup: make(map[string]struct{}, len(titles))}
	seen := make(map[string]struct{}, len(titles))
	for _, title := range titles {
		if _, ok := seen[title]; ok {
			continue
		}
		seen[title] = struct{}{}
		c.titles = append(c.titles, title)
		c.lookup[strings.ToLower(title)] = struct{}{}
	}
	return c
}

// contains reports whether s case-insensitively matches a chapter title
// after trimming surrounding whitespace.
func (c *chapterList) contains(s string) bool {
	if c == nil {
		return false
	}
	_, ok := c.lookup[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// hint returns up to limit titles in first-seen order, for prompt building.
func (c *chapterList) hint(limit int) []string {
	if c == nil {
		return nil
	}
	if len(c.titles) <= limit {
		return c.titles
	}
	return c.titles[:limit]
}

// tocLineKind classifies one line of a structure-detection response.
type tocLineKind int

const (
	tocLineChapter tocLineKind = iota
	tocLineNotTOC
	tocLineUnrecognized
)

// tocLinePrefixes marks chapter lines. ">>>" is the current prompt phrasing;
// "CHAPTER:" and "MAIN_SECTION:" are accepted for compatibility with older
// prompts the model may still echo.
var tocLinePrefixes = []string{">>>", "CHAPTER:", "MAIN_SECTION:"}

// parseTOCLine classifies one response line and extracts the chapter title
// when present.
func parseTOCLine(line string) (tocLineKind, string) {
	trimmed := strings.TrimSpace(line)
	for _, prefix := range tocLinePrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			title := strings.TrimSpace(strings.TrimPrefix(trimmed, prefix))
			if title == "" {
				return tocLineUnrecognized, ""
			}
			return tocLineChapter, title
		}
	}
	if trimmed == tocNotTOCSentinel {
		return tocLineNotTOC, ""
	}
	return tocLineUnrecognized, ""
}

// parseTOCResponse extracts chapter titles from one model response, in
// order of appearance. Responses with no chapter lines yield nothing.
func parseTOCResponse(resp string) []string {
	var titles []string
	for _, line := range strings.Split(resp, "\n") {
		if kind, title := parseTOCLine(line); kind == tocLineChapter {
			titles = append(titles, title)
		}
	}
	return titles
}

// extractTOC samples the document's leading pages and asks the model to
// detect a table of contents. It runs strictly sequentially: structure
// discovery needs a handful of requests, not throughput. Any per-page
// failure is treated as "not a TOC page"; the result is nil when nothing
// was found. TOC extraction never aborts the pipeline.
func (p *ocrPipeline) extractTOC(ctx context.Context, data []byte, pageCount int) *chapterList {
	sample := min(tocSampleLimit, pageCount)
	if sample == 0 || p.pool.size() == 0 {
		return nil
	}

	images, err := p.rast.rasterize(data, p.cfg.DPI, 1, sample)
	if err != nil {
		slog.Warn("ocr: toc sampling skipped, rasterization failed", "error", err)
		return nil
	}

	client := p.pool.clientAt(0)
	var titles []string
	for i, img := range images {
		enc, err := encodePageImage(img, p.cfg.Format, p.cfg.JPEGQuality)
		if err != nil {
			slog.Warn("ocr: toc page skipped", "page", i+1, "error", err)
			continue
		}
		resp, err := client.Complete(ctx, tocPrompt, visionImage(enc), p.cfg.MaxTokens)
		if err != nil {
			slog.Warn("ocr: toc page skipped", "page", i+1, "error", err)
			continue
		}
		titles = append(titles, parseTOCResponse(resp)...)
	}

	chapters := newChapterList(titles)
	if chapters != nil {
		slog.Info("ocr: table of contents detected",
			"pages_sampled", sample, "chapters", len(chapters.titles))
	}
	return chapters
}
