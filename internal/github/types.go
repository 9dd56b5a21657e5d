package github

import "time"

// Repository is the subset of GET /repos/{owner}/{repo}.
type Repository struct {
	ID              int64     `json:"id"`
	FullName        string    `json:"full_name"`
	DefaultBranch   string    `json:"default_branch"`
	Language        string    `json:"language"`
	Archived        bool      `json:"archived"`
	Fork            bool      `json:"fork"`
	Private         bool      `json:"private"`
	HTMLURL         string    `json:"html_url"`
	StargazersCount int       `json:"stargazers_count"`
	Size            int       `json:"size"`
	Topics          []string  `json:"topics"`
	CreatedAt       time.Time `json:"created_at"`
	PushedAt        time.Time `json:"pushed_at"`
}

// Signature is the author or the committer of a commit.
type Signature struct {
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Date  time.Time `json:"date"`
}

// CommitDetail is the git part of a commit.
type CommitDetail struct {
	Message   string    `json:"message"`
	Author    Signature `json:"author"`
	Committer Signature `json:"committer"`
}

// Commit is an element of GET /repos/{owner}/{repo}/commits.
type Commit struct {
	SHA    string       `json:"sha"`
	Commit CommitDetail `json:"commit"`
}

// When returns the commit time, falling back to the author time.
func (c Commit) When() time.Time {
	if !c.Commit.Committer.Date.IsZero() {
		return c.Commit.Committer.Date
	}
	return c.Commit.Author.Date
}

// Workflow is a GitHub Actions workflow definition.
type Workflow struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WorkflowRun is one execution of a workflow.
type WorkflowRun struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	WorkflowID   int64     `json:"workflow_id"`
	Path         string    `json:"path"`
	HeadBranch   string    `json:"head_branch"`
	HeadSHA      string    `json:"head_sha"`
	Event        string    `json:"event"`
	Status       string    `json:"status"`
	Conclusion   string    `json:"conclusion"`
	RunNumber    int       `json:"run_number"`
	RunAttempt   int       `json:"run_attempt"`
	HTMLURL      string    `json:"html_url"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	RunStartedAt time.Time `json:"run_started_at"`
}

// Started returns when the run began executing, falling back to the creation time.
func (r WorkflowRun) Started() time.Time {
	if !r.RunStartedAt.IsZero() {
		return r.RunStartedAt
	}
	return r.CreatedAt
}

// Duration is the wall time of the run. It may be negative for inconsistent records.
func (r WorkflowRun) Duration() time.Duration {
	return r.UpdatedAt.Sub(r.Started())
}

// CheckRunOutput is the text reported by a check.
type CheckRunOutput struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Text    string `json:"text"`
}

// App identifies the GitHub App which created a check run.
type App struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// CheckRun is an element of GET /repos/{owner}/{repo}/commits/{ref}/check-runs.
type CheckRun struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	HeadSHA     string         `json:"head_sha"`
	Status      string         `json:"status"`
	Conclusion  string         `json:"conclusion"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt time.Time      `json:"completed_at"`
	Output      CheckRunOutput `json:"output"`
	App         App            `json:"app"`
}

// ArtifactRun links an artifact to its workflow run.
type ArtifactRun struct {
	ID      int64  `json:"id"`
	HeadSHA string `json:"head_sha"`
}

// Artifact is a file bundle uploaded by a workflow run.
type Artifact struct {
	ID                 int64       `json:"id"`
	Name               string      `json:"name"`
	SizeInBytes        int64       `json:"size_in_bytes"`
	Expired            bool        `json:"expired"`
	ArchiveDownloadURL string      `json:"archive_download_url"`
	CreatedAt          time.Time   `json:"created_at"`
	ExpiresAt          time.Time   `json:"expires_at"`
	WorkflowRun        ArtifactRun `json:"workflow_run"`
}

// TreeEntry is an element of a recursive git tree listing.
type TreeEntry struct {
	Path string `json:"path"`
	Mode string `json:"mode"`
	Type string `json:"type"`
	SHA  string `json:"sha"`
	Size int64  `json:"size"`
}

type tree struct {
	SHA       string      `json:"sha"`
	Tree      []TreeEntry `json:"tree"`
	Truncated bool        `json:"truncated"`
}

type content struct {
	Type     string `json:"type"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
	Path     string `json:"path"`
}
