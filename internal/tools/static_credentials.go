package tools

import "context"

// StaticGitLabCredentials implements GitLabCredentials from a single configured token,
// for deployments that don't route GitLab access through a per-tenant credential store.
type StaticGitLabCredentials struct {
	APIToken   string
	GitLabHost string
}

func (c StaticGitLabCredentials) Token(ctx context.Context) (string, error) {
	return c.APIToken, nil
}

func (c StaticGitLabCredentials) BaseURL() string {
	return c.GitLabHost
}
