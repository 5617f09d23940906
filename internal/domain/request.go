package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// DownloadRequest is one templated URL together with the user's selections.
type DownloadRequest struct {
	URL            string   `json:"url" mapstructure:"url"`
	FilenamePrefix string   `json:"filename" mapstructure:"filename"`
	Exteriors      []string `json:"exteriors" mapstructure:"exteriors"` // may be padded with "" entries
	Interior       bool     `json:"interior" mapstructure:"interior"`
	Customize      bool     `json:"customize" mapstructure:"customize"`
}

func (r DownloadRequest) View() View {
	return ViewFor(r.Interior)
}

// IsBlank reports whether the request row was left empty by the caller.
func (r DownloadRequest) IsBlank() bool {
	return r.URL == "" || r.FilenamePrefix == ""
}

// Validate performs the checks a caller owes the planner before building a plan.
func (r DownloadRequest) Validate() error {
	if r.URL == "" || r.FilenamePrefix == "" {
		return fmt.Errorf("%w: url and filename are required", ErrInvalidRequest)
	}

	if r.Customize && !r.hasSelection() {
		return fmt.Errorf("%w: at least one exterior must be selected when customizing", ErrInvalidRequest)
	}

	u, err := url.ParseRequestURI(r.URL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported url scheme %q", ErrInvalidRequest, u.Scheme)
	}
	if u.Host == "" || strings.ContainsAny(u.Host, " \t") {
		return fmt.Errorf("%w: url has no valid host", ErrInvalidRequest)
	}

	return nil
}

// hasSelection reports whether a custom selection precedes the first "" stop entry.
func (r DownloadRequest) hasSelection() bool {
	return len(r.Exteriors) > 0 && r.Exteriors[0] != ""
}

// PlanEntry is one concrete image to retrieve.
type PlanEntry struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}
