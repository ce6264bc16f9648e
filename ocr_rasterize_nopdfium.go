//go:build nopdfium

package markitdown

import "errors"

// Without PDFium there is no page rasterizer; the OCR converter reports
// failure and the registry falls through to text extraction.
func newPageRasterizer() (pageRasterizer, error) {
	return nil, errors.New("page rasterization unavailable: built with nopdfium")
}
