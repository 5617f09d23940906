// Package plan expands download requests into the ordered list of images to fetch.
package plan

import (
	"fmt"

	"carpics/fetcher/internal/domain"
	"carpics/fetcher/internal/template"

	log "github.com/sirupsen/logrus"
)

type Builder struct {
	resolver template.Resolver
}

// NewBuilder returns a Builder resolving custom colours through resolver.
// resolver may be nil when no request customizes the exterior.
func NewBuilder(resolver template.Resolver) *Builder {
	return &Builder{resolver: resolver}
}

// Build returns one entry per (exterior selection, angle), selection-major.
//
// An empty selection ends the list. With Customize set it is dropped; without
// it, it is the single default-colour pass and is emitted before stopping.
func (b *Builder) Build(req domain.DownloadRequest) ([]domain.PlanEntry, error) {
	view := req.View()
	angles := domain.AnglesFor(view)
	entries := make([]domain.PlanEntry, 0, len(req.Exteriors)*len(angles))

	for _, code := range req.Exteriors {
		if req.Customize && code == "" {
			break
		}

		parsed, err := template.Parse(req.URL, template.Options{
			Interior:     req.Interior,
			ExteriorCode: code,
			Customize:    req.Customize,
		}, b.resolver)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template for %s: %w", req.FilenamePrefix, err)
		}

		for _, angle := range angles {
			entries = append(entries, domain.PlanEntry{
				URL:      template.Render(parsed, angle),
				Filename: Filename(req.FilenamePrefix, parsed.ExteriorName, view, angle),
			})
		}

		if code == "" {
			break
		}
	}

	log.Debugf("Built %d plan entries for %s", len(entries), req.FilenamePrefix)
	return entries, nil
}

func Filename(prefix, exteriorName string, view domain.View, angle string) string {
	return fmt.Sprintf("%s_%s_%s_%s.png", prefix, exteriorName, view.Tag(), angle)
}

// Result is the outcome of building one request.
type Result struct {
	Request domain.DownloadRequest
	Entries []domain.PlanEntry
	Err     error
}

// BuildAll validates and builds every non-blank request. A failing request is
// reported in its Result and does not affect the others.
func (b *Builder) BuildAll(reqs []domain.DownloadRequest) []Result {
	results := make([]Result, 0, len(reqs))
	for i, req := range reqs {
		if req.IsBlank() {
			log.Debugf("Skipping blank request row %d", i+1)
			continue
		}

		res := Result{Request: req}
		if err := req.Validate(); err != nil {
			res.Err = fmt.Errorf("request %d: %w", i+1, err)
		} else if entries, err := b.Build(req); err != nil {
			res.Err = fmt.Errorf("request %d: %w", i+1, err)
		} else {
			res.Entries = entries
		}
		results = append(results, res)
	}
	return results
}
