// Package dataset holds the read-only registry of raster datasets: where each
// raster lives, and the class-id tables used to name and color its pixels.
package dataset

import (
	"slices"
	"strconv"
)

// Ramp describes how a dataset's pixel values map onto classes.
type Ramp string

const (
	// RampValues means every pixel value is a class id.
	RampValues Ramp = "values"
	// RampIntervals means class ids are upper breaks of a continuous ramp.
	RampIntervals Ramp = "ramp"
)

// Source is the opaque handle a raster backend resolves into an image.
type Source struct {
	// Asset is a single image id. Mutually exclusive with Collection.
	Asset string `yaml:"asset" json:"asset,omitempty"`
	// Collection is an image collection id; the first image within
	// [Start, End] is used.
	Collection string `yaml:"collection" json:"collection,omitempty"`
	Start      string `yaml:"start" json:"start,omitempty"`
	End        string `yaml:"end" json:"end,omitempty"`
	// Band is the band whose values are histogrammed.
	Band string `yaml:"band" json:"band"`
	// MaskMax, when set, keeps only pixels with value <= MaskMax.
	MaskMax *int `yaml:"mask_max" json:"mask_max,omitempty"`
}

// Class is one row of a dataset's class table.
type Class struct {
	ID      int      `yaml:"id" json:"id"`
	Name    string   `yaml:"name" json:"name"`
	Color   string   `yaml:"color" json:"color"`
	Opacity *float64 `yaml:"opacity" json:"opacity,omitempty"`
}

// Descriptor is the immutable description of one dataset.
type Descriptor struct {
	Key    string
	Title  string
	Units  string
	Source Source
	Ramp   Ramp

	classes []Class // ascending by ID
	byID    map[int]int
}

// Classes returns a copy of the class table ordered by ascending id.
func (d *Descriptor) Classes() []Class {
	return slices.Clone(d.classes)
}

// ClassIDs returns the class ids in ascending order.
func (d *Descriptor) ClassIDs() []int {
	ids := make([]int, len(d.classes))
	for i, c := range d.classes {
		ids[i] = c.ID
	}
	return ids
}

// Class looks up a class row by id.
func (d *Descriptor) Class(id int) (Class, bool) {
	i, ok := d.byID[id]
	if !ok {
		return Class{}, false
	}
	return d.classes[i], true
}

// NameFor resolves a class id to its display name.
func (d *Descriptor) NameFor(id int) (string, error) {
	c, ok := d.Class(id)
	if !ok {
		return "", unknownClass(d.Key, id)
	}
	return c.Name, nil
}

// ColorFor resolves a class id to its legend color.
func (d *Descriptor) ColorFor(id int) (string, error) {
	c, ok := d.Class(id)
	if !ok {
		return "", unknownClass(d.Key, id)
	}
	return c.Color, nil
}

// ClassNames returns the id->name table with ids formatted as strings, the
// shape legend consumers expect.
func (d *Descriptor) ClassNames() map[string]string {
	out := make(map[string]string, len(d.classes))
	for _, c := range d.classes {
		out[strconv.Itoa(c.ID)] = c.Name
	}
	return out
}

// ClassColors returns the id->color table with ids formatted as strings.
func (d *Descriptor) ClassColors() map[string]string {
	out := make(map[string]string, len(d.classes))
	for _, c := range d.classes {
		out[strconv.Itoa(c.ID)] = c.Color
	}
	return out
}

// Breaks returns the upper class breaks of an interval ramp, or nil for a
// values ramp.
func (d *Descriptor) Breaks() []int {
	if d.Ramp != RampIntervals {
		return nil
	}
	return d.ClassIDs()
}
