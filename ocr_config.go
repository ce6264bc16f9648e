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
	"os"
	"strconv"
	"strings"
)

const (
	// defaultOCRDPI is the rasterization resolution for OCR page images.
	defaultOCRDPI = 200
	// defaultOCRMaxTokens caps the completion length per page.
	defaultOCRMaxTokens = 4096
	// defaultOCRJPEGQuality is used when the image format is lossy.
	defaultOCRJPEGQuality = 85
	// defaultOCRPerKeyConcurrency is the in-flight request budget per API key.
	defaultOCRPerKeyConcurrency = 8
	// fallbackOCRConcurrency is the limiter capacity with zero configured
	// keys, so the pipeline still runs (and fails per page) instead of
	// deadlocking on a zero-capacity semaphore.
	fallbackOCRConcurrency = 4
	// defaultOCRBatchSize bounds how many pages are rasterized and held in
	// memory at once.
	defaultOCRBatchSize = 100
	// tocSampleLimit is how many leading pages are sampled for a table of
	// contents. TOCs appear early or not at all.
	tocSampleLimit = 10
)

// OCRConfig configures the vision-model OCR path for PDF conversion.
// It is resolved once and passed by value to every pipeline stage; no stage
// reads ambient state after construction.
type OCRConfig struct {
	// Enabled turns the OCR converter on. When false (or when APIKeys is
	// empty) PDFs go through the text-extraction converter instead.
	Enabled bool

	// BaseURL is the OpenAI-compatible endpoint root, e.g.
	// "https://api.openai.com".
	BaseURL string

	// Model is the vision model name sent with every request.
	Model string

	// APIKeys holds one or more credentials. Each key becomes an
	// independent client; page requests are spread round robin across them.
	APIKeys []string

	// DPI is the rasterization resolution.
	DPI int

	// MaxTokens caps the completion length per page request.
	MaxTokens int

	// Format selects the page image encoding (lossless or lossy).
	Format ImageFormat

	// JPEGQuality applies when Format is ImageJPEG (1-100).
	JPEGQuality int

	// PerKeyConcurrency bounds in-flight requests per API key. Total
	// limiter capacity is PerKeyConcurrency times the number of keys.
	PerKeyConcurrency int

	// BatchSize is how many pages are rasterized and converted per batch.
	BatchSize int
}

// withDefaults fills zero-valued fields with implementation defaults.
func (c OCRConfig) withDefaults() OCRConfig {
	if c.DPI <= 0 {
		c.DPI = defaultOCRDPI
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = defaultOCRMaxTokens
	}
	if c.JPEGQuality <= 0 || c.JPEGQuality > 100 {
		c.JPEGQuality = defaultOCRJPEGQuality
	}
	if c.PerKeyConcurrency <= 0 {
		c.PerKeyConcurrency = defaultOCRPerKeyConcurrency
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultOCRBatchSize
	}
	return c
}

// limiterCapacity is the total in-flight request bound across the pool.
func (c OCRConfig) limiterCapacity(poolSize int) int {
	if poolSize == 0 {
		return fallbackOCRConcurrency
	}
	return c.PerKeyConcurrency * poolSize
}

// OCRConfigFromEnv resolves an OCRConfig from MARKITDOWN_OCR_* environment
// variables. Unset numeric variables fall back to the built-in defaults.
//
//	MARKITDOWN_OCR_ENABLED      "1"/"true" to enable
//	MARKITDOWN_OCR_BASE_URL     endpoint root
//	MARKITDOWN_OCR_MODEL        vision model name
//	MARKITDOWN_OCR_API_KEYS     comma-separated credentials
//	MARKITDOWN_OCR_DPI          rasterization DPI
//	MARKITDOWN_OCR_MAX_TOKENS   completion cap per page
//	MARKITDOWN_OCR_FORMAT       "png" or "jpeg"
//	MARKITDOWN_OCR_JPEG_QUALITY 1-100
//	MARKITDOWN_OCR_CONCURRENCY  in-flight requests per key
//	MARKITDOWN_OCR_BATCH_SIZE   pages per batch
func OCRConfigFromEnv() OCRConfig {
	cfg := OCRConfig{
		Enabled: envBool("MARKITDOWN_OCR_ENABLED"),
		BaseURL: os.Getenv("MARKITDOWN_OCR_BASE_URL"),
		Model:   os.Getenv("MARKITDOWN_OCR_MODEL"),
	}

	for _, key := range strings.Split(os.Getenv("MARKITDOWN_OCR_API_KEYS"), ",") {
		key = strings.TrimSpace(key)
		if key != "" {
			cfg.APIKeys = append(cfg.APIKeys, key)
		}
	}

	cfg.DPI = envInt("MARKITDOWN_OCR_DPI")
	cfg.MaxTokens = envInt("MARKITDOWN_OCR_MAX_TOKENS")
	cfg.JPEGQuality = envInt("MARKITDOWN_OCR_JPEG_QUALITY")
	cfg.PerKeyConcurrency = envInt("MARKITDOWN_OCR_CONCURRENCY")
	cfg.BatchSize = envInt("MARKITDOWN_OCR_BATCH_SIZE")

	if strings.EqualFold(os.Getenv("MARKITDOWN_OCR_FORMAT"), "jpeg") {
		cfg.Format = ImageJPEG
	}

	return cfg.withDefaults()
}

func envBool(name string) bool {
	v := strings.ToLower(os.Getenv(name))
	return v == "1" || v == "true" || v == "yes"
}

func envInt(name string) int {
	n, err := strconv.Atoi(os.Getenv(name))
	if err != nil {
		return 0
	}
	return n
}
