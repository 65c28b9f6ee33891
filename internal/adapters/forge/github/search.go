package github

import (
	"context"
	"iter"

	"issueradar/internal/services/discovery/domain"
)

// SearchIssues returns a finite, restartable sequence of normalized Issues
// for the given search expression, capped at maxResults. Pages are fetched
// lazily as the sequence is consumed. A page that fails after retries ends
// the sequence early; callers observe silent truncation and recover on the
// next interval tick
func (c *Client) SearchIssues(ctx context.Context, query string, maxResults int) iter.Seq[domain.Issue] {
	return func(yield func(domain.Issue) bool) {
		if maxResults <= 0 {
			return
		}
		after := ""
		yielded := 0
		for {
			if ctx.Err() != nil {
				return
			}
			first := min(defaultPageSize, maxResults-yielded)

			page, err := c.searchPage(ctx, query, first, after)
			if err != nil {
				c.log.Warn().Err(err).Str("cursor", after).Msg("search page dropped")
				return
			}
			c.lim.Update(page.RateLimit.Remaining, page.RateLimit.ResetAt)

			for _, n := range page.Search.Nodes {
				iss, ok := normalizeIssue(n)
				if !ok {
					c.log.Warn().Str("forge_id", n.ID).Msg("malformed search edge skipped")
					continue
				}
				if !yield(iss) {
					return
				}
				yielded++
				if yielded >= maxResults {
					return
				}
			}

			if !page.Search.PageInfo.HasNextPage {
				return
			}
			after = page.Search.PageInfo.EndCursor
		}
	}
}

func (c *Client) searchPage(ctx context.Context, query string, first int, after string) (searchData, error) {
	vars := map[string]any{
		"query": query,
		"first": first,
	}
	if after != "" {
		vars["after"] = after
	}
	var out searchData
	if err := c.execute(ctx, searchIssuesQuery, vars, &out); err != nil {
		return searchData{}, err
	}
	return out, nil
}
