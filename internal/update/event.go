// Package update defines the mutation-event record emitted by the repository
// maintenance backend and the rules for accepting one into an update log.
package update

import "strings"

// Event is one reported step of the backend's repository-maintenance run.
// Field names follow the backend's `repo-updates` table exactly.
type Event struct {
	ID              int64     `json:"id"`
	CreatedAt       Timestamp `json:"created_at"`
	Status          string    `json:"status"`
	Message         string    `json:"message"`
	Code            string    `json:"code,omitempty"`
	RepositoryName  string    `json:"repository_name,omitempty"`
	RepositoryOwner string    `json:"repository_owner,omitempty"`
	FileName        string    `json:"file_name,omitempty"`
	FilePath        string    `json:"file_path,omitempty"`
	Language        string    `json:"language,omitempty"`
	LinesChanged    *int      `json:"lines_changed,omitempty"`
}

// HasCode reports whether the event carries a file content snapshot.
func (e Event) HasCode() bool {
	return e.Code != ""
}

// Repository identifies the repository an event targets.
type Repository struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// Repository returns the target repository and whether the event named one.
func (e Event) Repository() (Repository, bool) {
	r := Repository{
		Owner: strings.TrimSpace(e.RepositoryOwner),
		Name:  strings.TrimSpace(e.RepositoryName),
	}
	return r, r.Owner != "" && r.Name != ""
}

// PullRequestsURL is the GitHub pull request listing for the repository,
// where the backend publishes its changes.
func (r Repository) PullRequestsURL() string {
	if r.Owner == "" || r.Name == "" {
		return ""
	}
	return "https://github.com/" + r.Owner + "/" + strings.TrimSuffix(r.Name, ".git") + "/pulls"
}
