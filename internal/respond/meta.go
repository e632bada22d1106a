package respond

import (
	"context"
	"io"
	"net/http"
	"regexp"

	"skeetstats/internal/logging"
)

var (
	ogTitleRe       = regexp.MustCompile(`(?i)<meta\s+property="og:title"\s+content="([^"]+)"`)
	ogDescriptionRe = regexp.MustCompile(`(?i)<meta\s+property="og:description"\s+content="([^"]+)"`)
)

// FetchMeta extracts og:title and og:description from the page at url.
// Best effort only: any network or parse failure yields nil fields and
// never an error, because a missing preview must not block the reply.
func FetchMeta(ctx context.Context, client *http.Client, url string) (title, description *string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil
	}
	resp, err := client.Do(req)
	if err != nil {
		logging.Error("meta_fetch_failed", map[string]any{"url": url, "error": err.Error()})
		return nil, nil
	}
	defer resp.Body.Close()
	html, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, nil
	}
	if m := ogTitleRe.FindSubmatch(html); m != nil {
		s := string(m[1])
		title = &s
	}
	if m := ogDescriptionRe.FindSubmatch(html); m != nil {
		s := string(m[1])
		description = &s
	}
	return title, description
}
