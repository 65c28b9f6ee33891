package github

import "time"

// Partial graph response documents with the fields we use

type rateLimitInfo struct {
	Cost      int       `json:"cost"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
}

type pageInfo struct {
	EndCursor   string `json:"endCursor"`
	HasNextPage bool   `json:"hasNextPage"`
}

type labelNode struct {
	Name string `json:"name"`
}

type topicNode struct {
	Topic struct {
		Name string `json:"name"`
	} `json:"topic"`
}

type repoNode struct {
	NameWithOwner string `json:"nameWithOwner"`
	Name          string `json:"name"`
	URL           string `json:"url"`
	Owner         struct {
		Login string `json:"login"`
	} `json:"owner"`
	StargazerCount  int `json:"stargazerCount"`
	ForkCount       int `json:"forkCount"`
	PrimaryLanguage *struct {
		Name string `json:"name"`
	} `json:"primaryLanguage"`
	RepositoryTopics struct {
		Nodes []topicNode `json:"nodes"`
	} `json:"repositoryTopics"`
	PushedAt *time.Time `json:"pushedAt"`
}

type issueNode struct {
	ID        string     `json:"id"`
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	URL       string     `json:"url"`
	State     string     `json:"state"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	ClosedAt  *time.Time `json:"closedAt"`
	Labels    struct {
		Nodes []labelNode `json:"nodes"`
	} `json:"labels"`
	Repository repoNode `json:"repository"`
}

type searchData struct {
	Search struct {
		PageInfo pageInfo    `json:"pageInfo"`
		Nodes    []issueNode `json:"nodes"`
	} `json:"search"`
	RateLimit rateLimitInfo `json:"rateLimit"`
}

type issueStatusData struct {
	Repository struct {
		Issue *struct {
			State       string     `json:"state"`
			StateReason string     `json:"stateReason"`
			ClosedAt    *time.Time `json:"closedAt"`
		} `json:"issue"`
	} `json:"repository"`
	RateLimit rateLimitInfo `json:"rateLimit"`
}

type repoMetadataData struct {
	Repository *repoNode     `json:"repository"`
	RateLimit  rateLimitInfo `json:"rateLimit"`
}

// RepoMetadata is the normalized repository document
type RepoMetadata struct {
	Owner           string
	Name            string
	URL             string
	Stars           int
	Forks           int
	PrimaryLanguage *string
	Topics          []string
	LastPush        *time.Time
}
