package domain

type View string

const (
	ViewExterior View = "exterior"
	ViewInterior View = "interior"
)

func ViewFor(interior bool) View {
	if interior {
		return ViewInterior
	}
	return ViewExterior
}

func (v View) String() string {
	return string(v)
}

// Segment returns the query segment written into rendered URLs.
func (v View) Segment() string {
	return "view=" + string(v)
}

// Tag returns the short form used in output filenames.
func (v View) Tag() string {
	if v == ViewInterior {
		return "int"
	}
	return "ext"
}

var (
	ExteriorAngles = []string{"00", "02", "04", "06", "09", "12", "15", "18", "21", "24", "27", "30", "33"}
	InteriorAngles = []string{"00", "01", "02"}
)

// AnglesFor returns the camera angles rendered for a view. The result must not be modified.
func AnglesFor(v View) []string {
	if v == ViewInterior {
		return InteriorAngles
	}
	return ExteriorAngles
}
