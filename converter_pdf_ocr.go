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
	"io"
	"strings"
)

// OCRPdfConverter converts PDF pages to markdown through a remote vision
// model. It is registered ahead of the text-extraction PDF converter, so any
// error it returns (no rasterizer, no pages, model endpoint unreachable at
// setup) falls through cleanly to plain text extraction for the whole file.
type OCRPdfConverter struct {
	cfg OCRConfig
}

// NewOCRPdfConverter creates the OCR-backed PDF converter.
func NewOCRPdfConverter(cfg OCRConfig) *OCRPdfConverter {
	return &OCRPdfConverter{cfg: cfg.withDefaults()}
}

func (c *OCRPdfConverter) Accepts(info StreamInfo) bool {
	if !c.cfg.Enabled || len(c.cfg.APIKeys) == 0 {
		return false
	}
	if info.Extension == ".pdf" {
		return true
	}
	return strings.HasPrefix(strings.ToLower(info.MIMEType), "application/pdf")
}

func (c *OCRPdfConverter) Convert(reader io.ReadSeeker, info StreamInfo) (*DocumentConverterResult, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read PDF: %w", err)
	}

	rast, err := newPageRasterizer()
	if err != nil {
		return nil, err
	}

	pipeline := newOCRPipeline(c.cfg, newVisionPool(c.cfg), rast)
	markdown, err := pipeline.run(context.Background(), data)
	if err != nil {
		return nil, fmt.Errorf("ocr conversion: %w", err)
	}
	if strings.TrimSpace(markdown) == "" {
		return &DocumentConverterResult{
			Markdown: "[No readable text content found in PDF]",
		}, nil
	}

	return &DocumentConverterResult{Markdown: markdown}, nil
}
