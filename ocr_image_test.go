package markitdown

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

func TestEncodePageImagePNG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 200, G: 10, B: 10, A: 255})

	enc, err := encodePageImage(img, ImagePNG, 0)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if enc.mimeType != "image/png" {
		t.Errorf("mimeType = %q, want image/png", enc.mimeType)
	}

	// Deterministic for identical input and parameters.
	again, err := encodePageImage(img, ImagePNG, 0)
	if err != nil {
		t.Fatalf("encode again: %v", err)
	}
	if !bytes.Equal(enc.data, again.data) {
		t.Error("PNG encoding is not deterministic")
	}
}

func TestEncodePageImageJPEGFlattensAlpha(t *testing.T) {
	// Fully transparent image; flattened onto white it must decode light,
	// not black.
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))

	enc, err := encodePageImage(img, ImageJPEG, 90)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if enc.mimeType != "image/jpeg" {
		t.Errorf("mimeType = %q, want image/jpeg", enc.mimeType)
	}

	decoded, err := jpeg.Decode(bytes.NewReader(enc.data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	r, g, b, _ := decoded.At(2, 2).RGBA()
	for name, v := range map[string]uint32{"r": r, "g": g, "b": b} {
		if v < 0xe000 {
			t.Errorf("channel %s = %#x, want near-white after flattening", name, v)
		}
	}
}

func TestEncodePageImageUnknownFormat(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	if _, err := encodePageImage(img, ImageFormat(99), 0); err == nil {
		t.Fatal("unknown format should fail")
	}
}

func TestImageFormatString(t *testing.T) {
	if ImagePNG.String() != "png" || ImageJPEG.String() != "jpeg" {
		t.Errorf("format strings = %q, %q", ImagePNG.String(), ImageJPEG.String())
	}
}
