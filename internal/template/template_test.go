package template

import (
	"strings"
	"testing"

	"carpics/fetcher/internal/domain"
	"carpics/fetcher/internal/exterior"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleURL = "https://images.example.com/Query?producttoken=abc" +
	"&country=US&model=modelX&vehicle=vehY&exterior=extDefault&upholstery=uphZ" +
	"&view=interior&angle=15&format=png&mode=fit&image-quality=70&scale-mode=2" +
	"&width=1920&height=1080&accessory=roofbox&meta=end"

func testTable() *exterior.Table {
	return exterior.FromMap([]string{"RED", "BLK"}, map[string]string{"RED": "3T3", "BLK": "212"})
}

func TestParse_Positions(t *testing.T) {
	got, err := Parse(sampleURL, Options{}, nil)
	require.NoError(t, err)

	want := &domain.TemplateURL{
		Host:             "https://images.example.com/Query?producttoken=abc",
		Country:          "country=US",
		ModelToken:       "model=modelX",
		VehicleToken:     "vehicle=vehY",
		ExteriorToken:    "exterior=extDefault",
		ExteriorName:     domain.DefaultExteriorName,
		Upholstery:       "upholstery=uphZ",
		View:             domain.ViewExterior,
		Format:           "format=png",
		Mode:             "mode=fit",
		ImageQuality:     "image-quality=100",
		ScaleMode:        "scale-mode=0",
		Accessory:        "accessory=roofbox",
		WidthHeight:      "width=1920&height=1080",
		TrailingMetadata: "meta=end",
	}
	assert.Equal(t, want, got)
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "no product token", raw: "host&US&modelX&vehY&extDefault&uphZ&viewOld&angOld&fmt&mode&iq&sm&meta"},
		{name: "too few segments", raw: "producttoken&US&modelX&vehY&extDefault&uphZ&viewOld&angOld&fmt&mode&iq&meta"},
		{name: "empty", raw: ""},
		{name: "accessor without value", raw: "producttoken&US&m&v&e&u&view&a&f&mo&iq&sm&accessories"},
		{name: "width without height", raw: "producttoken&US&m&v&e&u&view&a&f&mo&iq&sm&width=10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw, Options{}, nil)
			assert.ErrorIs(t, err, domain.ErrMalformedTemplate)
		})
	}
}

func TestParse_ProductTokenAnywhere(t *testing.T) {
	base := []string{"host", "US", "modelX", "vehY", "extDefault", "uphZ", "viewOld", "angOld", "fmt", "mode", "iq", "sm", "meta"}
	for i := range base {
		parts := append([]string(nil), base...)
		parts[i] = parts[i] + "producttoken"
		_, err := Parse(strings.Join(parts, "&"), Options{}, nil)
		assert.NoError(t, err, "marker in segment %d", i)
	}
}

func TestParse_Customize(t *testing.T) {
	got, err := Parse(sampleURL, Options{ExteriorCode: "RED", Customize: true, Interior: true}, testTable())
	require.NoError(t, err)

	assert.Equal(t, "exterior=3T3", got.ExteriorToken)
	assert.Equal(t, "RED", got.ExteriorName)
	assert.Equal(t, domain.ViewInterior, got.View)
}

func TestParse_CustomizeUnknownCode(t *testing.T) {
	_, err := Parse(sampleURL, Options{ExteriorCode: "BLU", Customize: true}, testTable())
	assert.ErrorIs(t, err, domain.ErrUnknownExteriorCode)
}

func TestParse_CustomizeWithoutTable(t *testing.T) {
	_, err := Parse(sampleURL, Options{ExteriorCode: "RED", Customize: true}, nil)
	assert.ErrorIs(t, err, domain.ErrResourceNotFound)
}

func TestParse_DefaultKeepsTemplateExterior(t *testing.T) {
	got, err := Parse(sampleURL, Options{ExteriorCode: "RED"}, testTable())
	require.NoError(t, err)
	assert.Equal(t, "XXXX", got.ExteriorName)
	assert.Equal(t, strings.Split(sampleURL, "&")[4], got.ExteriorToken)
}

func TestParse_OptionalFieldsAbsent(t *testing.T) {
	raw := "host?producttoken=1&US&m&v&e&u&view&a&f&mo&iq&sm&meta"
	got, err := Parse(raw, Options{}, nil)
	require.NoError(t, err)
	assert.Empty(t, got.Accessory)
	assert.Empty(t, got.WidthHeight)
	assert.Equal(t, "meta", got.TrailingMetadata)
}

func TestRender(t *testing.T) {
	parsed, err := Parse(sampleURL, Options{ExteriorCode: "RED", Customize: true}, testTable())
	require.NoError(t, err)

	got := Render(parsed, "04")
	want := "https://images.example.com/Query?producttoken=abc" +
		"&country=US&model=modelX&vehicle=vehY&exterior=3T3&upholstery=uphZ" +
		"&view=exterior&angle=04&format=png&mode=fit&image-quality=100&scale-mode=0" +
		"&width=1920&height=1080&accessory=roofbox&meta=end"
	assert.Equal(t, want, got)
	assert.Equal(t, got, Render(parsed, "04"))
}

func TestRender_EmptyOptionalFieldsKeepSlots(t *testing.T) {
	parsed, err := Parse("host?producttoken=1&US&m&v&e&u&view&a&f&mo&iq&sm&meta", Options{}, nil)
	require.NoError(t, err)

	got := Render(parsed, "00")
	assert.Equal(t, "host?producttoken=1&US&m&v&e&u&view=exterior&angle=00&f&mo&image-quality=100&scale-mode=0&&&meta", got)
	assert.Equal(t, 14, strings.Count(got, "&"))
}
