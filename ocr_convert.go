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
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// promptChapterLimit caps how many chapter titles are embedded in the page
// conversion prompt as a structure hint.
const promptChapterLimit = 6

const basePagePrompt = `Convert this document page to clean Markdown. Preserve the structure:
- Use markdown headings for section titles
- Format tables as markdown tables
- Use markdown list syntax for lists
- Describe figures and diagrams in [Figure: ...] blocks
- Preserve section numbering

Output only the markdown content of the page, with no commentary.`

// buildPagePrompt returns the conversion prompt for one pipeline run. With a
// known chapter list the prompt embeds the leading titles so the model keeps
// them at heading level 1.
func buildPagePrompt(chapters *chapterList) string {
	hint := chapters.hint(promptChapterLimit)
	if len(hint) == 0 {
		return basePagePrompt
	}

	var b strings.Builder
	b.WriteString(basePagePrompt)
	b.WriteString("\n\nThe document's top-level chapters include:\n")
	for _, title := range hint {
		b.WriteString("- ")
		b.WriteString(title)
		b.WriteString("\n")
	}
	b.WriteString("When one of these titles appears as a heading on this page, render it as a level-1 heading (#). Use deeper levels for all other headings.")
	return b.String()
}

// ocrPipeline converts one document through the remote vision model. The
// pool and limiter are shared read-mostly across all page tasks; everything
// else is per-task.
type ocrPipeline struct {
	cfg     OCRConfig
	pool    *ocrClientPool
	limiter *ocrLimiter
	rast    pageRasterizer
}

func newOCRPipeline(cfg OCRConfig, pool *ocrClientPool, rast pageRasterizer) *ocrPipeline {
	cfg = cfg.withDefaults()
	return &ocrPipeline{
		cfg:     cfg,
		pool:    pool,
		limiter: newOCRLimiter(cfg.limiterCapacity(pool.size())),
		rast:    rast,
	}
}

// run converts the whole document and returns the assembled, heading-
// normalized markdown. Client sessions are released on every exit path.
func (p *ocrPipeline) run(ctx context.Context, data []byte) (string, error) {
	defer p.pool.close()

	pageCount, err := p.rast.pageCount(data)
	if err != nil {
		return "", fmt.Errorf("page count: %w", err)
	}
	if pageCount == 0 {
		return "", nil
	}

	chapters := p.extractTOC(ctx, data, pageCount)
	prompt := buildPagePrompt(chapters)

	// One slot per page, written at most once by its owning task. Indexing
	// by pageNumber-1 keeps the result ordered without any shared-map
	// synchronization.
	outcomes := make([]pageOutcome, pageCount)

	start := time.Now()
	for first := 1; first <= pageCount; first += p.cfg.BatchSize {
		last := min(first+p.cfg.BatchSize-1, pageCount)
		if err := p.convertBatch(ctx, data, prompt, first, last, outcomes); err != nil {
			if first == 1 {
				// Nothing converted yet; let the caller fall back to
				// another converter for the whole file.
				return "", err
			}
			slog.Warn("ocr: batch rasterization failed, pages marked as failed",
				"first_page", first, "last_page", last, "error", err)
		}
		slog.Info("ocr: batch complete",
			"pages_done", last, "pages_total", pageCount,
			"elapsed", time.Since(start).Round(time.Millisecond))
	}

	return normalizeHeadings(assemblePages(outcomes), chapters), nil
}

// convertBatch rasterizes pages first..last and converts them concurrently.
// The batch boundary is a synchronization point: every task finishes before
// the next batch is rasterized, bounding peak memory. A returned error means
// the batch could not be rasterized at all; per-page request failures are
// recorded in outcomes, never returned.
func (p *ocrPipeline) convertBatch(ctx context.Context, data []byte, prompt string, first, last int, outcomes []pageOutcome) error {
	images, err := p.rast.rasterize(data, p.cfg.DPI, first, last)
	if err != nil {
		return fmt.Errorf("rasterize pages %d-%d: %w", first, last, err)
	}

	var wg sync.WaitGroup
	for i, img := range images {
		pageNum := first + i

		// Encode before launching so the raster can be released once the
		// batch loop ends; tasks hold only the immutable encoded payload.
		enc, err := encodePageImage(img, p.cfg.Format, p.cfg.JPEGQuality)
		if err != nil {
			slog.Warn("ocr: page encoding failed", "page", pageNum, "error", err)
			continue
		}

		wg.Add(1)
		go func(pageNum int, enc encodedImage) {
			defer wg.Done()
			outcomes[pageNum-1] = p.convertPage(ctx, prompt, pageNum, enc)
		}(pageNum, enc)
	}
	wg.Wait()
	return nil
}

// convertPage issues one conversion request through the round-robin client
// for this page. Task index is pageNumber-1, so the assignment is
// deterministic and independent of completion order. Any failure becomes a
// failed outcome; it never cancels sibling tasks.
func (p *ocrPipeline) convertPage(ctx context.Context, prompt string, pageNum int, enc encodedImage) pageOutcome {
	if err := p.limiter.acquire(ctx); err != nil {
		slog.Warn("ocr: page conversion canceled", "page", pageNum, "error", err)
		return pageOutcome{}
	}
	defer p.limiter.release()

	if p.pool.size() == 0 {
		return pageOutcome{}
	}

	client := p.pool.clientAt(pageNum - 1)
	content, err := client.Complete(ctx, prompt, visionImage(enc), p.cfg.MaxTokens)
	if err != nil {
		slog.Warn("ocr: page conversion failed", "page", pageNum, "error", err)
		return pageOutcome{}
	}
	return pageOutcome{content: strings.TrimSpace(content), ok: true}
}
