package github

// Graph query documents. The search expression itself is passed through
// verbatim as the $query variable in the forge's native search syntax

const searchIssuesQuery = `
query($query: String!, $first: Int!, $after: String) {
  search(query: $query, type: ISSUE, first: $first, after: $after) {
    pageInfo { endCursor hasNextPage }
    nodes {
      ... on Issue {
        id
        number
        title
        body
        url
        state
        createdAt
        updatedAt
        closedAt
        labels(first: 20) { nodes { name } }
        repository {
          nameWithOwner
          name
          url
          owner { login }
          stargazerCount
          forkCount
          primaryLanguage { name }
          repositoryTopics(first: 10) { nodes { topic { name } } }
          pushedAt
        }
      }
    }
  }
  rateLimit { cost remaining resetAt }
}`

const issueStatusQuery = `
query($owner: String!, $name: String!, $number: Int!) {
  repository(owner: $owner, name: $name) {
    issue(number: $number) {
      state
      stateReason
      closedAt
    }
  }
  rateLimit { cost remaining resetAt }
}`

const repoMetadataQuery = `
query($owner: String!, $name: String!) {
  repository(owner: $owner, name: $name) {
    nameWithOwner
    name
    url
    owner { login }
    stargazerCount
    forkCount
    primaryLanguage { name }
    repositoryTopics(first: 10) { nodes { topic { name } } }
    pushedAt
  }
  rateLimit { cost remaining resetAt }
}`
