package markitdown

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"reflect"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nicholasgasior/markitdown-ocr/internal/vision"
)

// fakeRasterizer produces 1x1 gray pages whose pixel value encodes the page
// number, so fake clients can tell which page a request carries.
type fakeRasterizer struct {
	pages    int
	countErr error
	failFrom int // rasterize calls with firstPage >= failFrom fail (0 = never)

	mu     sync.Mutex
	ranges [][2]int
}

func (f *fakeRasterizer) pageCount([]byte) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.pages, nil
}

func (f *fakeRasterizer) rasterize(_ []byte, _, firstPage, lastPage int) ([]image.Image, error) {
	f.mu.Lock()
	f.ranges = append(f.ranges, [2]int{firstPage, lastPage})
	f.mu.Unlock()

	if f.failFrom > 0 && firstPage >= f.failFrom {
		return nil, errors.New("render failure")
	}

	images := make([]image.Image, 0, lastPage-firstPage+1)
	for p := firstPage; p <= lastPage; p++ {
		img := image.NewGray(image.Rect(0, 0, 1, 1))
		img.SetGray(0, 0, color.Gray{Y: uint8(p)})
		images = append(images, img)
	}
	return images, nil
}

// pageFromPayload recovers the page number a fake rasterizer encoded into
// the image pixel.
func pageFromPayload(img vision.Image) int {
	decoded, err := png.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return -1
	}
	gray := color.GrayModel.Convert(decoded.At(0, 0)).(color.Gray)
	return int(gray.Y)
}

// fakeVisionClient is an instrumented visionClient. TOC requests and page
// conversion requests are recorded separately, keyed by page number.
type fakeVisionClient struct {
	respond     func(page int) (string, error)
	respondFull func(prompt string, page int) (string, error) // takes precedence
	delay       time.Duration

	inFlight    *int32
	maxInFlight *int32

	mu        sync.Mutex
	convPages []int
	tocPages  []int
	prompts   []string
	closed    bool
}

func (c *fakeVisionClient) Complete(_ context.Context, prompt string, img vision.Image, _ int) (string, error) {
	if c.inFlight != nil {
		n := atomic.AddInt32(c.inFlight, 1)
		for {
			prev := atomic.LoadInt32(c.maxInFlight)
			if n <= prev || atomic.CompareAndSwapInt32(c.maxInFlight, prev, n) {
				break
			}
		}
		defer atomic.AddInt32(c.inFlight, -1)
	}
	if c.delay > 0 {
		time.Sleep(c.delay)
	}

	page := pageFromPayload(img)
	c.mu.Lock()
	if prompt == tocPrompt {
		c.tocPages = append(c.tocPages, page)
	} else {
		c.convPages = append(c.convPages, page)
		c.prompts = append(c.prompts, prompt)
	}
	c.mu.Unlock()

	if c.respondFull != nil {
		return c.respondFull(prompt, page)
	}
	if c.respond != nil {
		return c.respond(page)
	}
	return fmt.Sprintf("content of page %d", page), nil
}

func (c *fakeVisionClient) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// notTOC always answers the sentinel, keeping pipelines structure-free.
func notTOC(page int) (string, error) {
	return tocNotTOCSentinel, nil
}

func newTestPipeline(cfg OCRConfig, rast *fakeRasterizer, clients ...*fakeVisionClient) *ocrPipeline {
	pool := make([]visionClient, len(clients))
	for i, c := range clients {
		pool[i] = c
	}
	return newOCRPipeline(cfg, newOCRClientPool(pool), rast)
}

func TestPipelineOutputsEveryPageInOrder(t *testing.T) {
	client := &fakeVisionClient{
		respond: func(page int) (string, error) {
			// Later pages answer faster so completion order is the
			// reverse of page order.
			time.Sleep(time.Duration(6-page) * time.Millisecond)
			if page == 3 {
				return "", errors.New("transport error")
			}
			return fmt.Sprintf("content of page %d", page), nil
		},
	}
	p := newTestPipeline(OCRConfig{}, &fakeRasterizer{pages: 5}, client)

	got, err := p.run(context.Background(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	wantInOrder := []string{
		"content of page 1",
		"content of page 2",
		"<!-- OCR failed for page 3 -->",
		"content of page 4",
		"content of page 5",
	}
	pos := 0
	for _, want := range wantInOrder {
		idx := strings.Index(got[pos:], want)
		if idx < 0 {
			t.Fatalf("output missing %q in order:\n%s", want, got)
		}
		pos += idx + len(want)
	}
}

func TestPipelineRoundRobin(t *testing.T) {
	clients := []*fakeVisionClient{
		{respond: notTOC}, {respond: notTOC}, {respond: notTOC},
	}
	p := newTestPipeline(OCRConfig{}, &fakeRasterizer{pages: 9}, clients...)

	if _, err := p.run(context.Background(), nil); err != nil {
		t.Fatalf("run: %v", err)
	}

	// Page p goes through client (p-1) mod 3, regardless of completion order.
	want := [][]int{{1, 4, 7}, {2, 5, 8}, {3, 6, 9}}
	for i, client := range clients {
		pages := append([]int(nil), client.convPages...)
		sort.Ints(pages)
		if !reflect.DeepEqual(pages, want[i]) {
			t.Errorf("client %d converted pages %v, want %v", i, pages, want[i])
		}
	}
}

func TestPipelineLimiterBound(t *testing.T) {
	var inFlight, maxInFlight int32
	clients := []*fakeVisionClient{
		{respond: notTOC, delay: 2 * time.Millisecond, inFlight: &inFlight, maxInFlight: &maxInFlight},
		{respond: notTOC, delay: 2 * time.Millisecond, inFlight: &inFlight, maxInFlight: &maxInFlight},
	}
	cfg := OCRConfig{PerKeyConcurrency: 1} // capacity 1 x 2 clients = 2
	p := newTestPipeline(cfg, &fakeRasterizer{pages: 12}, clients...)

	if _, err := p.run(context.Background(), nil); err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := atomic.LoadInt32(&maxInFlight); got > 2 {
		t.Errorf("observed %d requests in flight, limiter capacity is 2", got)
	}
}

func TestPipelineBatching(t *testing.T) {
	rast := &fakeRasterizer{pages: 10}
	client := &fakeVisionClient{respond: notTOC}
	p := newTestPipeline(OCRConfig{BatchSize: 4}, rast, client)

	if _, err := p.run(context.Background(), nil); err != nil {
		t.Fatalf("run: %v", err)
	}

	want := [][2]int{
		{1, 10}, // TOC sample
		{1, 4}, {5, 8}, {9, 10},
	}
	if !reflect.DeepEqual(rast.ranges, want) {
		t.Errorf("rasterized ranges %v, want %v", rast.ranges, want)
	}
}

func TestPipelineMidRunBatchFailure(t *testing.T) {
	rast := &fakeRasterizer{pages: 10, failFrom: 5}
	client := &fakeVisionClient{respond: notTOC}
	p := newTestPipeline(OCRConfig{BatchSize: 4}, rast, client)

	got, err := p.run(context.Background(), nil)
	if err != nil {
		t.Fatalf("run should survive a mid-run batch failure, got %v", err)
	}

	for _, want := range []string{
		"content of page 4",
		"<!-- OCR failed for page 5 -->",
		"<!-- OCR failed for page 8 -->",
		"content of page 9",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestPipelineFirstBatchFailureIsFatal(t *testing.T) {
	rast := &fakeRasterizer{pages: 10, failFrom: 1}
	client := &fakeVisionClient{respond: notTOC}
	p := newTestPipeline(OCRConfig{}, rast, client)

	if _, err := p.run(context.Background(), nil); err == nil {
		t.Fatal("run should fail when no pages can be rasterized")
	}
	if !client.closed {
		t.Error("client session not closed on the error path")
	}
}

func TestPipelineClosesClients(t *testing.T) {
	clients := []*fakeVisionClient{{respond: notTOC}, {respond: notTOC}}
	p := newTestPipeline(OCRConfig{}, &fakeRasterizer{pages: 2}, clients...)

	if _, err := p.run(context.Background(), nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	for i, c := range clients {
		if !c.closed {
			t.Errorf("client %d session not closed", i)
		}
	}
}

func TestPipelineZeroPages(t *testing.T) {
	client := &fakeVisionClient{respond: func(int) (string, error) {
		t.Error("no request should be issued for an empty document")
		return "", nil
	}}
	p := newTestPipeline(OCRConfig{}, &fakeRasterizer{pages: 0}, client)

	got, err := p.run(context.Background(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got != "" {
		t.Errorf("output for empty document = %q, want empty", got)
	}
}

func TestPipelineUsesStructureHint(t *testing.T) {
	// Page 1 is a TOC page naming one chapter; every converted page emits
	// one chapter heading and one spurious H1.
	client := &fakeVisionClient{
		respondFull: func(prompt string, page int) (string, error) {
			if prompt == tocPrompt {
				if page == 1 {
					return ">>> Alpha", nil
				}
				return tocNotTOCSentinel, nil
			}
			return "# Alpha\n# Subsection", nil
		},
	}
	p := newTestPipeline(OCRConfig{}, &fakeRasterizer{pages: 2}, client)

	got, err := p.run(context.Background(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// The conversion prompt embeds the detected chapter.
	client.mu.Lock()
	prompts := append([]string(nil), client.prompts...)
	client.mu.Unlock()
	if len(prompts) == 0 {
		t.Fatal("no conversion prompts recorded")
	}
	for _, prompt := range prompts {
		if !strings.Contains(prompt, "Alpha") {
			t.Errorf("conversion prompt missing structure hint:\n%s", prompt)
		}
	}

	// The chapter heading stays H1; the non-chapter H1 is demoted.
	if !strings.Contains(got, "# Alpha") {
		t.Errorf("chapter heading missing from output:\n%s", got)
	}
	if !strings.Contains(got, "## Subsection") {
		t.Errorf("non-chapter H1 was not demoted:\n%s", got)
	}
}

func TestBuildPagePrompt(t *testing.T) {
	if got := buildPagePrompt(nil); got != basePagePrompt {
		t.Errorf("prompt without chapters should be the base prompt")
	}

	chapters := newChapterList([]string{"A", "B", "C", "D", "E", "F", "G", "H"})
	got := buildPagePrompt(chapters)
	for _, title := range []string{"- A\n", "- F\n"} {
		if !strings.Contains(got, title) {
			t.Errorf("prompt missing chapter hint %q", title)
		}
	}
	if strings.Contains(got, "- G\n") {
		t.Error("prompt should embed at most six chapter titles")
	}
}

func TestOCRPdfConverterAccepts(t *testing.T) {
	pdfInfo := StreamInfo{Extension: ".pdf", MIMEType: "application/pdf"}

	disabled := NewOCRPdfConverter(OCRConfig{})
	if disabled.Accepts(pdfInfo) {
		t.Error("disabled OCR converter should not accept PDFs")
	}

	noKeys := NewOCRPdfConverter(OCRConfig{Enabled: true})
	if noKeys.Accepts(pdfInfo) {
		t.Error("OCR converter without credentials should not accept PDFs")
	}

	enabled := NewOCRPdfConverter(OCRConfig{Enabled: true, APIKeys: []string{"k"}})
	if !enabled.Accepts(pdfInfo) {
		t.Error("enabled OCR converter should accept PDFs")
	}
	if enabled.Accepts(StreamInfo{Extension: ".docx"}) {
		t.Error("OCR converter should only accept PDFs")
	}
}
