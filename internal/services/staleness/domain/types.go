// Package domain holds staleness types and ports
package domain

import "time"

// IssueRef identifies one tracked issue to re-verify
type IssueRef struct {
	URL           string
	Owner         string
	Repo          string
	Number        int
	LastCheckedAt time.Time
}

// CheckResult summarizes one staleness pass
type CheckResult struct {
	Checked int
	Closed  int
	Errors  int
}
