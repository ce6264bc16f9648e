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

import "strings"

// shortHeadingThreshold is the maximum length for a plain line to be
// promoted to a chapter heading. Longer lines are assumed to be prose that
// happens to contain a title.
const shortHeadingThreshold = 80

// normalizeHeadings rewrites heading levels so that exactly the document's
// chapter titles sit at level 1:
//
//   - an H1 whose text is not a chapter title is demoted to H2
//   - an H2 whose text is a chapter title is promoted to H1
//   - H3 and deeper are left alone
//   - a short plain line matching a chapter title becomes an H1
//
// Title matching is case-insensitive. Non-matching H2s are deliberately left
// unchanged to avoid destroying legitimate subsection structure. Lines are
// never reordered or dropped, and the function is idempotent. With no
// chapter list it is a no-op.
func normalizeHeadings(text string, chapters *chapterList) string {
	if chapters == nil {
		return text
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "# "):
			if !chapters.contains(line[2:]) {
				lines[i] = "#" + line
			}
		case strings.HasPrefix(line, "## "):
			if chapters.contains(line[3:]) {
				lines[i] = line[1:]
			}
		case strings.HasPrefix(line, "#"):
			// H3+, or a malformed heading marker. Leave alone.
		default:
			trimmed := strings.TrimSpace(line)
			if trimmed != "" && len(trimmed) < shortHeadingThreshold && chapters.contains(trimmed) {
				lines[i] = "# " + trimmed
			}
		}
	}

	return strings.Join(lines, "\n")
}
