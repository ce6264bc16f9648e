package markitdown

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func converterIndex(m *MarkItDown, name string) int {
	for i, rc := range m.converters {
		if rc.name == name {
			return i
		}
	}
	return -1
}

func TestOCRConverterRegistration(t *testing.T) {
	m := New(WithOCR(OCRConfig{Enabled: true, APIKeys: []string{"k"}}))

	ocrIdx := converterIndex(m, "pdf-ocr")
	pdfIdx := converterIndex(m, "pdf")
	if ocrIdx < 0 {
		t.Fatal("pdf-ocr converter not registered")
	}
	if ocrIdx > pdfIdx {
		t.Errorf("pdf-ocr at %d after pdf at %d; OCR must be tried first", ocrIdx, pdfIdx)
	}

	plain := New()
	if converterIndex(plain, "pdf-ocr") >= 0 {
		t.Error("pdf-ocr registered without WithOCR")
	}
}

// failingConverter stands in for an OCR path whose setup fails (no
// rasterizer, endpoint unreachable).
type failingConverter struct{}

func (failingConverter) Accepts(StreamInfo) bool { return true }

func (failingConverter) Convert(io.ReadSeeker, StreamInfo) (*DocumentConverterResult, error) {
	return nil, errors.New("model endpoint unreachable")
}

func TestConversionFallsThroughFailedConverter(t *testing.T) {
	m := New()
	m.RegisterConverter("always-fails", failingConverter{}, PrioritySpecific-1)

	result, err := m.ConvertReader(
		strings.NewReader("plain text content"),
		StreamInfo{Extension: ".txt", MIMEType: "text/plain"},
	)
	if err != nil {
		t.Fatalf("conversion should fall through to the next converter: %v", err)
	}
	if !strings.Contains(result.Markdown, "plain text content") {
		t.Errorf("fallback output = %q", result.Markdown)
	}
}
