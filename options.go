package markitdown

// Option configures a MarkItDown instance.
type Option func(*MarkItDown)

// WithKeepDataURIs configures whether to keep full data URIs in output
// (default: false, which truncates them to data:mime/type;base64...).
func WithKeepDataURIs(keep bool) Option {
	return func(m *MarkItDown) {
		m.keepDataURIs = keep
	}
}

// WithStyleMap sets custom style mapping for DOCX conversion.
func WithStyleMap(styleMap string) Option {
	return func(m *MarkItDown) {
		m.styleMap = styleMap
	}
}

// WithOCR enables vision-model OCR for PDF input. The config is resolved
// once here; the OCR converter is tried before text extraction and falls
// back to it on failure.
func WithOCR(cfg OCRConfig) Option {
	return func(m *MarkItDown) {
		m.ocrConfig = cfg.withDefaults()
	}
}
