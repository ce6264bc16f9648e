//go:build !nopdfium

package markitdown

import (
	"fmt"
	"image"
	"time"

	"github.com/klippa-app/go-pdfium/requests"
)

// pdfiumRasterizer renders PDF pages via the shared PDFium WebAssembly pool
// (see converter_pdf_pdfium.go).
type pdfiumRasterizer struct{}

// newPageRasterizer returns the PDFium-backed rasterizer, or an error when
// the PDFium pool cannot be initialized. The error makes the OCR converter
// fail cleanly so the registry falls through to text extraction.
func newPageRasterizer() (pageRasterizer, error) {
	pdfiumPoolOnce.Do(initPdfiumPool)
	if pdfiumPoolErr != nil {
		return nil, fmt.Errorf("init pdfium: %w", pdfiumPoolErr)
	}
	return &pdfiumRasterizer{}, nil
}

func (r *pdfiumRasterizer) pageCount(data []byte) (int, error) {
	instance, err := pdfiumPool.GetInstance(30 * time.Second)
	if err != nil {
		return 0, fmt.Errorf("get pdfium instance: %w", err)
	}
	defer instance.Close()

	doc, err := instance.OpenDocument(&requests.OpenDocument{File: &data})
	if err != nil {
		return 0, fmt.Errorf("open PDF: %w", err)
	}
	defer instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{Document: doc.Document})

	resp, err := instance.FPDF_GetPageCount(&requests.FPDF_GetPageCount{Document: doc.Document})
	if err != nil {
		return 0, fmt.Errorf("get page count: %w", err)
	}
	return resp.PageCount, nil
}

func (r *pdfiumRasterizer) rasterize(data []byte, dpi, firstPage, lastPage int) ([]image.Image, error) {
	instance, err := pdfiumPool.GetInstance(30 * time.Second)
	if err != nil {
		return nil, fmt.Errorf("get pdfium instance: %w", err)
	}
	defer instance.Close()

	doc, err := instance.OpenDocument(&requests.OpenDocument{File: &data})
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	defer instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{Document: doc.Document})

	images := make([]image.Image, 0, lastPage-firstPage+1)
	for pageNum := firstPage; pageNum <= lastPage; pageNum++ {
		render, err := instance.RenderPageInDPI(&requests.RenderPageInDPI{
			DPI: dpi,
			Page: requests.Page{
				ByIndex: &requests.PageByIndex{
					Document: doc.Document,
					Index:    pageNum - 1,
				},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", pageNum, err)
		}
		images = append(images, render.Result.Image)
	}
	return images, nil
}
