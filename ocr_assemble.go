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
	"fmt"
	"strings"
)

// pageOutcome is the per-page conversion result. Every page gets exactly one
// outcome; a failed page records ok=false instead of being omitted, so the
// assembled document always covers the full page range.
type pageOutcome struct {
	content string
	ok      bool
}

// pageDelimiter separates consecutive pages in the assembled document.
const pageDelimiter = "\n\n---\n\n"

// assemblePages joins per-page outcomes into one document in page order.
// Slot i holds page i+1. The result depends only on the outcome slice, never
// on the order tasks completed in. Failed pages become explicit, greppable
// placeholders rather than silently vanishing.
func assemblePages(outcomes []pageOutcome) string {
	multiPage := len(outcomes) > 1

	parts := make([]string, 0, len(outcomes))
	for i, outcome := range outcomes {
		pageNum := i + 1
		if !outcome.ok {
			parts = append(parts, fmt.Sprintf("<!-- OCR failed for page %d -->", pageNum))
			continue
		}
		if multiPage {
			parts = append(parts, fmt.Sprintf("<!-- Page %d -->\n\n%s", pageNum, outcome.content))
		} else {
			parts = append(parts, outcome.content)
		}
	}

	return strings.Join(parts, pageDelimiter)
}
