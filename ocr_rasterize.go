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

import "image"

// pageRasterizer turns document bytes into page images. Page numbers are
// 1-based and inclusive on both ends of a range.
type pageRasterizer interface {
	// pageCount returns the number of pages without rendering any of them.
	pageCount(data []byte) (int, error)

	// rasterize renders pages firstPage..lastPage at the given DPI, in
	// page order.
	rasterize(data []byte, dpi, firstPage, lastPage int) ([]image.Image, error)
}
