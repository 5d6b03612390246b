package layout

// Config holds the tunable geometry of the layout engine. The zero value is
// usable: every field falls back to its default.
type Config struct {
	// NodeWidth and NodeHeight are the assumed dimensions of an element
	// before its actual rendered size is known. NodeWidth also stands in
	// for the width of a column no element has been placed in yet.
	NodeWidth  float64 `yaml:"node_width"`
	NodeHeight float64 `yaml:"node_height"`

	// Padding is the inset between a container's border and its content.
	Padding float64 `yaml:"padding"`

	// VerticalGap and HorizontalGap separate stacked and adjacent
	// elements respectively.
	VerticalGap   float64 `yaml:"vertical_gap"`
	HorizontalGap float64 `yaml:"horizontal_gap"`

	// SafeZone is the margin reserved on the side a container's incoming
	// edge enters from, keeping the edge label clear of content.
	SafeZone float64 `yaml:"safe_zone"`

	// HeaderHeight is the container title band the first row must clear.
	HeaderHeight float64 `yaml:"header_height"`

	// MaxGrid clamps the magnitude of grid coordinates from the stream.
	MaxGrid int `yaml:"max_grid"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		NodeWidth:     220,
		NodeHeight:    120,
		Padding:       24,
		VerticalGap:   40,
		HorizontalGap: 64,
		SafeZone:      90,
		HeaderHeight:  48,
		MaxGrid:       100,
	}
}

func (c Config) WithDefaults() Config {
	d := Default()
	if c.NodeWidth <= 0 {
		c.NodeWidth = d.NodeWidth
	}
	if c.NodeHeight <= 0 {
		c.NodeHeight = d.NodeHeight
	}
	if c.Padding <= 0 {
		c.Padding = d.Padding
	}
	if c.VerticalGap <= 0 {
		c.VerticalGap = d.VerticalGap
	}
	if c.HorizontalGap <= 0 {
		c.HorizontalGap = d.HorizontalGap
	}
	if c.SafeZone <= 0 {
		c.SafeZone = d.SafeZone
	}
	if c.HeaderHeight <= 0 {
		c.HeaderHeight = d.HeaderHeight
	}
	if c.MaxGrid <= 0 {
		c.MaxGrid = d.MaxGrid
	}
	return c
}
