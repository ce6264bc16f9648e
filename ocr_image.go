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
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
)

// ImageFormat selects the encoding for rasterized page images sent to the
// vision model.
type ImageFormat int

const (
	// ImagePNG is lossless and the default.
	ImagePNG ImageFormat = iota
	// ImageJPEG is lossy; smaller payloads at the cost of fidelity.
	ImageJPEG
)

func (f ImageFormat) String() string {
	if f == ImageJPEG {
		return "jpeg"
	}
	return "png"
}

// encodedImage is an immutable transport-ready page image. Once built it is
// safe to share across concurrent conversion tasks.
type encodedImage struct {
	data     []byte
	mimeType string
}

// encodePageImage serializes one page raster. JPEG has no alpha channel, so
// a source with transparency is flattened onto white first. Encoding is
// deterministic for identical inputs and parameters.
func encodePageImage(img image.Image, format ImageFormat, quality int) (encodedImage, error) {
	var buf bytes.Buffer

	switch format {
	case ImageJPEG:
		flat := flattenAlpha(img)
		if err := jpeg.Encode(&buf, flat, &jpeg.Options{Quality: quality}); err != nil {
			return encodedImage{}, fmt.Errorf("encode JPEG: %w", err)
		}
		return encodedImage{data: buf.Bytes(), mimeType: "image/jpeg"}, nil
	case ImagePNG:
		if err := png.Encode(&buf, img); err != nil {
			return encodedImage{}, fmt.Errorf("encode PNG: %w", err)
		}
		return encodedImage{data: buf.Bytes(), mimeType: "image/png"}, nil
	default:
		return encodedImage{}, fmt.Errorf("unknown image format %d", int(format))
	}
}

// flattenAlpha composites img onto an opaque white background when it may
// carry transparency. Already-opaque images are returned as is.
func flattenAlpha(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}
	bounds := img.Bounds()
	flat := image.NewRGBA(bounds)
	draw.Draw(flat, bounds, image.White, image.Point{}, draw.Src)
	draw.Draw(flat, bounds, img, bounds.Min, draw.Over)
	return flat
}
