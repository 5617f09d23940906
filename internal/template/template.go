// Package template parses vendor image URLs into positional fields and renders
// them back, one URL per camera angle.
//
// A vendor URL is an '&'-separated list of segments with fixed meanings:
//
//	https://host/Query?...&country&model&vehicle&exterior&upholstery&view&angle&format&mode&quality&scale&...&meta
//
// Parse keeps the fields that identify the product and replaces the ones the
// user selects (view, exterior colour, angle).
package template

import (
	"fmt"
	"strings"

	"carpics/fetcher/internal/domain"
)

const (
	minSegments  = 13
	productToken = "producttoken"
)

// Segment offsets in a split template URL.
var offsets = struct {
	Host, Country, Model, Vehicle, Exterior, Upholstery, View, Angle, Format, Mode int
}{
	Host:       0,
	Country:    1,
	Model:      2,
	Vehicle:    3,
	Exterior:   4,
	Upholstery: 5,
	View:       6, // replaced by Options.Interior
	Angle:      7, // replaced per rendered URL
	Format:     8,
	Mode:       9,
}

// Resolver maps an exterior code to its vendor token.
type Resolver interface {
	Lookup(code string) (string, error)
}

type Options struct {
	Interior     bool
	ExteriorCode string
	Customize    bool
}

func Parse(raw string, opts Options, resolver Resolver) (*domain.TemplateURL, error) {
	parts := strings.Split(raw, "&")
	if len(parts) < minSegments {
		return nil, fmt.Errorf("%w: %d segments, need at least %d", domain.ErrMalformedTemplate, len(parts), minSegments)
	}
	if !strings.Contains(raw, productToken) {
		return nil, fmt.Errorf("%w: no %s marker", domain.ErrMalformedTemplate, productToken)
	}

	t := &domain.TemplateURL{
		Host:             parts[offsets.Host],
		Country:          parts[offsets.Country],
		ModelToken:       parts[offsets.Model],
		VehicleToken:     parts[offsets.Vehicle],
		Upholstery:       parts[offsets.Upholstery],
		View:             domain.ViewFor(opts.Interior),
		Format:           parts[offsets.Format],
		Mode:             parts[offsets.Mode],
		ImageQuality:     domain.ImageQuality,
		ScaleMode:        domain.ScaleMode,
		TrailingMetadata: parts[len(parts)-1],
	}

	if opts.Customize {
		if resolver == nil {
			return nil, fmt.Errorf("%w: no exterior table to resolve %q", domain.ErrResourceNotFound, opts.ExteriorCode)
		}
		token, err := resolver.Lookup(opts.ExteriorCode)
		if err != nil {
			return nil, err
		}
		t.ExteriorToken = "exterior=" + token
		t.ExteriorName = opts.ExteriorCode
	} else {
		t.ExteriorToken = parts[offsets.Exterior]
		t.ExteriorName = domain.DefaultExteriorName
	}

	// First occurrence wins. An unrelated token containing "width" is
	// mis-read the same way the vendor form does.
	if strings.Contains(raw, "accessor") {
		v, ok := valueAfter(raw, "accessory=")
		if !ok {
			return nil, fmt.Errorf("%w: accessory marker without value", domain.ErrMalformedTemplate)
		}
		t.Accessory = "accessory=" + v
	}

	if strings.Contains(raw, "width") {
		w, okW := valueAfter(raw, "width=")
		h, okH := valueAfter(raw, "height=")
		if !okW || !okH {
			return nil, fmt.Errorf("%w: width without width=/height= values", domain.ErrMalformedTemplate)
		}
		t.WidthHeight = "width=" + w + "&height=" + h
	}

	return t, nil
}

// valueAfter returns the text between the first marker and the next '&'.
func valueAfter(raw, marker string) (string, bool) {
	_, rest, found := strings.Cut(raw, marker)
	if !found {
		return "", false
	}
	v, _, _ := strings.Cut(rest, "&")
	return v, true
}

// Render serializes t for one camera angle. Empty optional fields still take a slot.
func Render(t *domain.TemplateURL, angle string) string {
	return strings.Join([]string{
		t.Host,
		t.Country,
		t.ModelToken,
		t.VehicleToken,
		t.ExteriorToken,
		t.Upholstery,
		t.View.Segment(),
		"angle=" + angle,
		t.Format,
		t.Mode,
		t.ImageQuality,
		t.ScaleMode,
		t.WidthHeight,
		t.Accessory,
		t.TrailingMetadata,
	}, "&")
}
