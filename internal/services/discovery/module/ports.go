package module

import (
	"issueradar/internal/adapters/forge/github"
	"issueradar/internal/services/discovery/domain"
	"issueradar/internal/services/discovery/service"
)

// Ports defines discovery module ports exposed via the registry
type Ports struct {
	Runner    domain.RunnerPort
	Scheduler domain.SchedulerPort
	Publisher domain.PublisherPort
	Checker   domain.StatusChecker

	// Pipeline and Supervisor give sibling modules and the ops surface
	// direct access to job registration, counters and lifecycle state
	Pipeline   *service.Svc
	Supervisor *service.Supervisor
	Client     *github.Client
}
