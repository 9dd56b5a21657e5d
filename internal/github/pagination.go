package github

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// NextPage extracts the rel="next" URL from the Link header. Returns "" on the last page.
func NextPage(header http.Header) string {
	for _, link := range header.Values("Link") {
		for _, part := range strings.Split(link, ",") {
			sections := strings.Split(part, ";")
			if len(sections) < 2 {
				continue
			}
			target := strings.TrimSpace(sections[0])
			if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
				continue
			}
			for _, param := range sections[1:] {
				param = strings.TrimSpace(param)
				if param == `rel="next"` || param == "rel=next" {
					return target[1 : len(target)-1]
				}
			}
		}
	}
	return ""
}

// listAll walks the pages starting from `requestURL` until there is no next page or `max`
// items are collected (max <= 0 means no limit). If `key` is not empty, the pages are objects
// and the items are in the array under that key, e.g. "workflow_runs".
func listAll[T any](ctx context.Context, c *Client, requestURL, key string, max int) ([]T, error) {
	var result []T
	for requestURL != "" {
		resp, err := c.Do(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return result, err
		}
		var page []T
		if key == "" {
			err = json.Unmarshal(resp.Body, &page)
		} else {
			var wrapper map[string]json.RawMessage
			if err = json.Unmarshal(resp.Body, &wrapper); err == nil {
				if raw, exists := wrapper[key]; exists {
					err = json.Unmarshal(raw, &page)
				}
			}
		}
		if err != nil {
			return result, errors.Wrapf(err, "decoding %s", requestURL)
		}
		result = append(result, page...)
		if max > 0 && len(result) >= max {
			return result[:max], nil
		}
		if len(page) == 0 {
			break
		}
		requestURL = NextPage(resp.Header)
	}
	return result, nil
}
