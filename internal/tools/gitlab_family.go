package tools

import (
	"context"
	"fmt"

	"github.com/basegraphhq/turnengine/internal/turn"
	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// GitLabCredentials resolves a per-call API token; adapted from the teacher's
// store.IntegrationCredentialStore lookup but narrowed to the single credential this
// tool family needs.
type GitLabCredentials interface {
	Token(ctx context.Context) (string, error)
	BaseURL() string
}

// gitLabTool is the "git" tool family's single instance: a mutating tool that posts
// comments to issues/merge requests, exercised by workflow bundles that need to report
// findings back into a GitLab project. Reads (fetching issues/discussions) go through
// the non-mutating "git_read" family instead so chat-mode turns can still use them.
type gitLabTool struct {
	creds GitLabCredentials
}

func NewGitLabTool(creds GitLabCredentials) Instance {
	return &gitLabTool{creds: creds}
}

func (t *gitLabTool) Name() string   { return "gitlab" }
func (t *gitLabTool) Family() string { return "git" }

func (t *gitLabTool) Invoke(ctx context.Context, args map[string]any) (Result, error) {
	projectID, _ := args["project_id"].(string)
	issueIID, _ := toInt(args["issue_iid"])
	comment, _ := args["comment"].(string)

	if projectID == "" || comment == "" {
		return Result{}, fmt.Errorf("gitlab tool requires project_id and comment")
	}

	client, err := t.client(ctx)
	if err != nil {
		return Result{}, err
	}

	note, _, err := client.Notes.CreateIssueNote(projectID, issueIID, &gitlab.CreateIssueNoteOptions{
		Body: gitlab.Ptr(comment),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return Result{}, fmt.Errorf("posting gitlab issue note: %w", err)
	}

	claim, err := turn.NewClaim(
		fmt.Sprintf("gitlab-note-%d", note.ID),
		fmt.Sprintf("posted comment to %s#%d", projectID, issueIID),
		fmt.Sprintf("gitlab:%s/issues/%d#note_%d", projectID, issueIID, note.ID),
		turn.EvidenceTool,
		1.0,
	)
	if err != nil {
		return Result{}, err
	}

	return Result{Status: "ok", Data: note, Claims: []turn.Claim{claim}}, nil
}

func (t *gitLabTool) client(ctx context.Context) (*gitlab.Client, error) {
	token, err := t.creds.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving gitlab credentials: %w", err)
	}

	opts := []gitlab.ClientOptionFunc{}
	if base := t.creds.BaseURL(); base != "" {
		opts = append(opts, gitlab.WithBaseURL(base))
	}

	client, err := gitlab.NewClient(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gitlab client: %w", err)
	}
	return client, nil
}

// gitLabReadTool is the non-mutating counterpart: fetches issue/discussion content for
// the research side of the Coordinator without ever writing back to GitLab.
type gitLabReadTool struct {
	creds GitLabCredentials
}

func NewGitLabReadTool(creds GitLabCredentials) Instance {
	return &gitLabReadTool{creds: creds}
}

func (t *gitLabReadTool) Name() string   { return "gitlab_read" }
func (t *gitLabReadTool) Family() string { return "git_read" }

func (t *gitLabReadTool) Invoke(ctx context.Context, args map[string]any) (Result, error) {
	projectID, _ := args["project_id"].(string)
	issueIID, _ := toInt(args["issue_iid"])
	if projectID == "" {
		return Result{}, fmt.Errorf("gitlab_read tool requires project_id")
	}

	token, err := t.creds.Token(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("resolving gitlab credentials: %w", err)
	}
	client, err := gitlab.NewClient(token)
	if err != nil {
		return Result{}, fmt.Errorf("creating gitlab client: %w", err)
	}

	issue, _, err := client.Issues.GetIssue(projectID, issueIID, nil, gitlab.WithContext(ctx))
	if err != nil {
		return Result{}, fmt.Errorf("fetching gitlab issue: %w", err)
	}

	claim, err := turn.NewClaim(
		fmt.Sprintf("gitlab-issue-%d", issue.IID),
		issue.Title+": "+issue.Description,
		fmt.Sprintf("gitlab:%s/issues/%d", projectID, issue.IID),
		turn.EvidenceTool,
		1.0,
	)
	if err != nil {
		return Result{}, err
	}

	return Result{Status: "ok", Data: issue, Claims: []turn.Claim{claim}}, nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
