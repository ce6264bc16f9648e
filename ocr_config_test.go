package markitdown

import (
	"reflect"
	"testing"
)

func TestOCRConfigFromEnv(t *testing.T) {
	t.Setenv("MARKITDOWN_OCR_ENABLED", "true")
	t.Setenv("MARKITDOWN_OCR_BASE_URL", "https://example.test")
	t.Setenv("MARKITDOWN_OCR_MODEL", "vision-1")
	t.Setenv("MARKITDOWN_OCR_API_KEYS", "k1, k2 ,,k3")
	t.Setenv("MARKITDOWN_OCR_DPI", "150")
	t.Setenv("MARKITDOWN_OCR_FORMAT", "jpeg")
	t.Setenv("MARKITDOWN_OCR_CONCURRENCY", "")

	cfg := OCRConfigFromEnv()

	if !cfg.Enabled {
		t.Error("Enabled = false")
	}
	if cfg.BaseURL != "https://example.test" || cfg.Model != "vision-1" {
		t.Errorf("endpoint = %q model = %q", cfg.BaseURL, cfg.Model)
	}
	if want := []string{"k1", "k2", "k3"}; !reflect.DeepEqual(cfg.APIKeys, want) {
		t.Errorf("APIKeys = %v, want %v", cfg.APIKeys, want)
	}
	if cfg.DPI != 150 {
		t.Errorf("DPI = %d, want 150", cfg.DPI)
	}
	if cfg.Format != ImageJPEG {
		t.Errorf("Format = %v, want jpeg", cfg.Format)
	}
	if cfg.PerKeyConcurrency != defaultOCRPerKeyConcurrency {
		t.Errorf("PerKeyConcurrency = %d, want default %d", cfg.PerKeyConcurrency, defaultOCRPerKeyConcurrency)
	}
}

func TestOCRConfigDefaults(t *testing.T) {
	cfg := OCRConfig{}.withDefaults()
	if cfg.DPI != defaultOCRDPI || cfg.MaxTokens != defaultOCRMaxTokens ||
		cfg.BatchSize != defaultOCRBatchSize || cfg.JPEGQuality != defaultOCRJPEGQuality {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Format != ImagePNG {
		t.Errorf("default format = %v, want png", cfg.Format)
	}
}

func TestLimiterCapacity(t *testing.T) {
	cfg := OCRConfig{PerKeyConcurrency: 3}.withDefaults()
	if got := cfg.limiterCapacity(4); got != 12 {
		t.Errorf("capacity with 4 keys = %d, want 12", got)
	}
	if got := cfg.limiterCapacity(0); got != fallbackOCRConcurrency {
		t.Errorf("capacity with empty pool = %d, want fallback %d", got, fallbackOCRConcurrency)
	}
}
