// Package extractor pulls Yahoo! image thumbnail URLs out of a results page.
package extractor

import (
	"fmt"
	"io"
	"regexp"
)

// Pattern matches thumbnail URLs on the msp.c.yimg.jp image host. The dots in
// the host and extension are unescaped and match any character. A path is 1
// to 1024 characters; RE2 caps a single repeat at 1000, hence the split.
const Pattern = `(https?)://msp.c.yimg.jp/` + pathChars + `{1,1000}` + pathChars + `{0,24}.jpg`

const pathChars = `[A-Za-z0-9._%+\-/]`

var imageURL = regexp.MustCompile(Pattern)

// ExtractionError is reserved for a future pattern engine that can fail.
// Extract is total over its input and never produces one.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract image urls: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Extract returns every image URL in text, in order of first occurrence,
// without duplicates. The result is never nil. Matching is RE2, linear in
// len(text).
func Extract(text string) []string {
	matches := imageURL.FindAllString(text, -1)

	urls := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		urls = append(urls, m)
	}
	return urls
}

// ExtractReader reads r to the end and extracts from its contents.
func ExtractReader(r io.Reader) ([]string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}
	return Extract(string(b)), nil
}
