package dataset

import (
	"strconv"
	"strings"
)

// SLD renders the dataset's class table as an SLD RasterSymbolizer color map,
// the style string tile renderers apply to the raster.
func (d *Descriptor) SLD() string {
	mapType := "values"
	if d.Ramp == RampIntervals {
		mapType = "ramp"
	}

	var b strings.Builder
	b.WriteString(`<RasterSymbolizer><ColorMap type="`)
	b.WriteString(mapType)
	b.WriteString(`" extended="false">`)
	for _, c := range d.classes {
		b.WriteString(`<ColorMapEntry color="`)
		b.WriteString(c.Color)
		b.WriteString(`" quantity="`)
		b.WriteString(strconv.Itoa(c.ID))
		b.WriteString(`"`)
		if c.Opacity != nil {
			b.WriteString(` opacity="`)
			b.WriteString(strconv.FormatFloat(*c.Opacity, 'f', -1, 64))
			b.WriteString(`"`)
		}
		b.WriteString(` />`)
	}
	b.WriteString(`</ColorMap></RasterSymbolizer>`)
	return b.String()
}
