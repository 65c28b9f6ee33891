package github

import (
	"context"

	perr "issueradar/internal/platform/errors"
	"issueradar/internal/services/discovery/domain"
)

// CheckIssueStatus probes the current state of a single issue
func (c *Client) CheckIssueStatus(ctx context.Context, owner, repo string, number int) (domain.IssueStatus, error) {
	vars := map[string]any{
		"owner":  owner,
		"name":   repo,
		"number": number,
	}
	var out issueStatusData
	if err := c.execute(ctx, issueStatusQuery, vars, &out); err != nil {
		return domain.IssueStatus{}, err
	}
	c.lim.Update(out.RateLimit.Remaining, out.RateLimit.ResetAt)

	node := out.Repository.Issue
	if node == nil {
		return domain.IssueStatus{}, perr.NotFoundf("issue %s/%s#%d not found", owner, repo, number)
	}
	st := domain.IssueStatus{
		State:  normalizeState(node.State),
		Reason: node.StateReason,
	}
	if node.ClosedAt != nil {
		t := node.ClosedAt.UTC()
		st.ClosedAt = &t
		st.State = domain.StateClosed
	}
	return st, nil
}

// GetRepoMetadata fetches the repository document for enrichment
func (c *Client) GetRepoMetadata(ctx context.Context, owner, name string) (RepoMetadata, error) {
	vars := map[string]any{
		"owner": owner,
		"name":  name,
	}
	var out repoMetadataData
	if err := c.execute(ctx, repoMetadataQuery, vars, &out); err != nil {
		return RepoMetadata{}, err
	}
	c.lim.Update(out.RateLimit.Remaining, out.RateLimit.ResetAt)

	if out.Repository == nil {
		return RepoMetadata{}, perr.NotFoundf("repository %s/%s not found", owner, name)
	}
	return normalizeRepo(*out.Repository), nil
}
