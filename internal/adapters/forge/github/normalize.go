package github

import (
	"strings"

	"issueradar/internal/services/discovery/domain"
)

// normalizeState maps forge state values onto the pipeline enum.
// Anything unknown is treated as closed so it drops out of circulation
func normalizeState(s string) string {
	if strings.EqualFold(s, "OPEN") {
		return domain.StateOpen
	}
	return domain.StateClosed
}

// normalizeIssue converts a graph node into the immutable pipeline record.
// Missing nested fields default to empty collections or absent values.
// ok=false marks a malformed edge the caller should skip
func normalizeIssue(n issueNode) (domain.Issue, bool) {
	if n.URL == "" || n.Title == "" {
		return domain.Issue{}, false
	}

	state := normalizeState(n.State)
	if n.ClosedAt != nil {
		state = domain.StateClosed
	}

	created := n.CreatedAt.UTC()
	updated := n.UpdatedAt.UTC()
	if updated.Before(created) {
		updated = created
	}

	iss := domain.Issue{
		ForgeID:   n.ID,
		Number:    n.Number,
		Title:     n.Title,
		Body:      n.Body,
		URL:       n.URL,
		State:     state,
		CreatedAt: created,
		UpdatedAt: updated,
		Labels:    labelNames(n.Labels.Nodes),

		RepoOwner:  n.Repository.Owner.Login,
		RepoName:   n.Repository.Name,
		RepoURL:    n.Repository.URL,
		RepoStars:  max(n.Repository.StargazerCount, 0),
		RepoForks:  max(n.Repository.ForkCount, 0),
		RepoTopics: topicNames(n.Repository.RepositoryTopics.Nodes),
	}
	if n.ClosedAt != nil {
		t := n.ClosedAt.UTC()
		if t.Before(created) {
			t = created
		}
		iss.ClosedAt = &t
	}
	if pl := n.Repository.PrimaryLanguage; pl != nil && pl.Name != "" {
		name := pl.Name
		iss.RepoPrimaryLanguage = &name
	}
	if n.Repository.PushedAt != nil {
		t := n.Repository.PushedAt.UTC()
		iss.RepoLastPush = &t
	}
	return iss, true
}

func labelNames(nodes []labelNode) []string {
	out := make([]string, 0, len(nodes))
	for _, l := range nodes {
		if l.Name != "" {
			out = append(out, l.Name)
		}
	}
	return out
}

func topicNames(nodes []topicNode) []string {
	out := make([]string, 0, len(nodes))
	for _, t := range nodes {
		if t.Topic.Name != "" {
			out = append(out, t.Topic.Name)
		}
	}
	return out
}

func normalizeRepo(n repoNode) RepoMetadata {
	md := RepoMetadata{
		Owner:  n.Owner.Login,
		Name:   n.Name,
		URL:    n.URL,
		Stars:  max(n.StargazerCount, 0),
		Forks:  max(n.ForkCount, 0),
		Topics: topicNames(n.RepositoryTopics.Nodes),
	}
	if pl := n.PrimaryLanguage; pl != nil && pl.Name != "" {
		name := pl.Name
		md.PrimaryLanguage = &name
	}
	if n.PushedAt != nil {
		t := n.PushedAt.UTC()
		md.LastPush = &t
	}
	return md
}
