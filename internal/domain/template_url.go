package domain

const (
	// DefaultExteriorName is the filename component used when the template's own colour is kept.
	DefaultExteriorName = "XXXX"

	ImageQuality = "image-quality=100"
	ScaleMode    = "scale-mode=0"
)

// TemplateURL is a parsed vendor image URL. Values are built by template.Parse
// and are treated as immutable afterwards.
type TemplateURL struct {
	Host             string `json:"host"`              // s[0], scheme and path up to the first '&'
	Country          string `json:"country"`           // s[1]
	ModelToken       string `json:"model_token"`       // s[2]
	VehicleToken     string `json:"vehicle_token"`     // s[3]
	ExteriorToken    string `json:"exterior_token"`    // s[4] or exterior=<table token>
	ExteriorName     string `json:"exterior_name"`     // selected code or XXXX
	Upholstery       string `json:"upholstery"`        // s[5]
	View             View   `json:"view"`              // from the caller, never the template
	Format           string `json:"format"`            // s[8]
	Mode             string `json:"mode"`              // s[9]
	ImageQuality     string `json:"image_quality"`     // fixed
	ScaleMode        string `json:"scale_mode"`        // fixed
	Accessory        string `json:"accessory"`         // accessory=<v> or empty
	WidthHeight      string `json:"width_height"`      // width=<w>&height=<h> or empty
	TrailingMetadata string `json:"trailing_metadata"` // last segment
}
