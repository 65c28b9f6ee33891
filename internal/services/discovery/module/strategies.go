package module

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"

	perr "issueradar/internal/platform/errors"
	"issueradar/internal/services/discovery/domain"
)

var validate = validator.New()

// defaultStrategies is the built-in search rotation. High-signal queries
// run on short intervals with deep caps; broad sweeps run slower and
// shallower so they cannot starve the quota
func defaultStrategies() []domain.Strategy {
	return []domain.Strategy{
		{
			Name:      "good-first-issue",
			Query:     `is:issue is:open label:"good first issue" sort:created-desc`,
			Priority:  1,
			Interval:  30 * time.Minute,
			ResultCap: 200,
		},
		{
			Name:      "help-wanted",
			Query:     `is:issue is:open label:"help wanted" sort:created-desc`,
			Priority:  1,
			Interval:  30 * time.Minute,
			ResultCap: 200,
		},
		{
			Name:      "bug-recent",
			Query:     `is:issue is:open label:bug created:>=2026-01-01 sort:created-desc`,
			Priority:  2,
			Interval:  time.Hour,
			ResultCap: 150,
		},
		{
			Name:      "bounty",
			Query:     `is:issue is:open label:bounty sort:created-desc`,
			Priority:  2,
			Interval:  time.Hour,
			ResultCap: 100,
		},
		{
			Name:      "docs",
			Query:     `is:issue is:open label:documentation sort:updated-desc`,
			Priority:  3,
			Interval:  2 * time.Hour,
			ResultCap: 100,
		},
		{
			Name:      "go-ecosystem",
			Query:     `is:issue is:open language:go comments:>5 sort:updated-desc`,
			Priority:  3,
			Interval:  2 * time.Hour,
			ResultCap: 100,
		},
		{
			Name:      "popular-repos",
			Query:     `is:issue is:open stars:>1000 sort:created-desc`,
			Priority:  3,
			Interval:  2 * time.Hour,
			ResultCap: 50,
		},
		{
			Name:      "stale-candidates",
			Query:     `is:issue is:open no:assignee updated:<2026-06-01 sort:updated-asc`,
			Priority:  4,
			Interval:  4 * time.Hour,
			ResultCap: 50,
		},
	}
}

// strategyWire is the env override shape; intervals come as duration strings
type strategyWire struct {
	Name      string `json:"name"`
	Query     string `json:"query"`
	Priority  int    `json:"priority"`
	Interval  string `json:"interval"`
	ResultCap int    `json:"result_cap"`
}

// loadStrategies returns the validated strategy table: the built-in rotation,
// or the full replacement table from the DISCOVERY_STRATEGIES env JSON
func loadStrategies(raw string) ([]domain.Strategy, error) {
	sts := defaultStrategies()

	if raw != "" {
		var wire []strategyWire
		if err := json.Unmarshal([]byte(raw), &wire); err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeJSON, "strategies override is not valid JSON")
		}
		sts = sts[:0]
		for _, w := range wire {
			iv, err := time.ParseDuration(w.Interval)
			if err != nil {
				return nil, perr.InvalidArgf("strategy %q interval %q: %v", w.Name, w.Interval, err)
			}
			sts = append(sts, domain.Strategy{
				Name:      w.Name,
				Query:     w.Query,
				Priority:  w.Priority,
				Interval:  iv,
				ResultCap: w.ResultCap,
			})
		}
	}

	names := make(map[string]struct{}, len(sts))
	for i := range sts {
		if err := validate.Struct(&sts[i]); err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "strategy %q failed validation", sts[i].Name)
		}
		if _, dup := names[sts[i].Name]; dup {
			return nil, perr.InvalidArgf("duplicate strategy name %q", sts[i].Name)
		}
		names[sts[i].Name] = struct{}{}
	}
	return sts, nil
}
