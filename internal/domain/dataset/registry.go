package dataset

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Registry is the static dataset table. It is built once and never mutated,
// so it is safe to share between goroutines without locking.
type Registry struct {
	byKey map[string]*Descriptor
	keys  []string
}

type catalogFile struct {
	Datasets []catalogEntry `yaml:"datasets"`
}

type catalogEntry struct {
	Key     string  `yaml:"key"`
	Title   string  `yaml:"title"`
	Units   string  `yaml:"units"`
	Source  Source  `yaml:"source"`
	Ramp    Ramp    `yaml:"ramp"`
	Classes []Class `yaml:"classes"`
}

// Default returns the registry built from the embedded catalog.
func Default() (*Registry, error) {
	return Parse(embeddedCatalog)
}

// MustDefault is Default for package initialization and tests.
func MustDefault() *Registry {
	r, err := Default()
	if err != nil {
		panic(err)
	}
	return r
}

// LoadFile builds a registry from a catalog YAML file.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}
	return Parse(data)
}

// Parse builds a registry from catalog YAML.
func Parse(data []byte) (*Registry, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file catalogFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}
	if len(file.Datasets) == 0 {
		return nil, fmt.Errorf("%w: no datasets", ErrInvalidCatalog)
	}

	r := &Registry{byKey: make(map[string]*Descriptor, len(file.Datasets))}
	for i := range file.Datasets {
		d, err := build(&file.Datasets[i])
		if err != nil {
			return nil, err
		}
		if _, dup := r.byKey[d.Key]; dup {
			return nil, fmt.Errorf("%w: duplicate dataset %q", ErrInvalidCatalog, d.Key)
		}
		r.byKey[d.Key] = d
		r.keys = append(r.keys, d.Key)
	}
	slices.Sort(r.keys)
	return r, nil
}

func build(e *catalogEntry) (*Descriptor, error) {
	key := strings.TrimSpace(e.Key)
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: dataset %q: %s", ErrInvalidCatalog, key, fmt.Sprintf(format, args...))
	}

	if key == "" {
		return nil, fmt.Errorf("%w: dataset without key", ErrInvalidCatalog)
	}
	if (e.Source.Asset == "") == (e.Source.Collection == "") {
		return nil, fail("source needs exactly one of asset or collection")
	}
	if e.Source.Band == "" {
		return nil, fail("source band is required")
	}
	switch e.Ramp {
	case "":
		e.Ramp = RampValues
	case RampValues, RampIntervals:
	default:
		return nil, fail("unknown ramp %q", e.Ramp)
	}
	if len(e.Classes) == 0 {
		return nil, fail("no classes")
	}

	classes := slices.Clone(e.Classes)
	slices.SortFunc(classes, func(a, b Class) int { return a.ID - b.ID })

	byID := make(map[int]int, len(classes))
	for i, c := range classes {
		if _, dup := byID[c.ID]; dup {
			return nil, fail("duplicate class %d", c.ID)
		}
		if c.Name == "" {
			return nil, fail("class %d has no name", c.ID)
		}
		if !colorPattern.MatchString(c.Color) {
			return nil, fail("class %d has malformed color %q", c.ID, c.Color)
		}
		if c.Opacity != nil && (*c.Opacity < 0 || *c.Opacity > 1) {
			return nil, fail("class %d opacity out of range", c.ID)
		}
		byID[c.ID] = i
	}

	return &Descriptor{
		Key:     key,
		Title:   e.Title,
		Units:   e.Units,
		Source:  e.Source,
		Ramp:    e.Ramp,
		classes: classes,
		byID:    byID,
	}, nil
}

// Describe returns the descriptor registered under key.
func (r *Registry) Describe(key string) (*Descriptor, error) {
	d, ok := r.byKey[key]
	if !ok {
		return nil, unknownDataset(key)
	}
	return d, nil
}

// NameFor resolves a class id of dataset key to its display name.
func (r *Registry) NameFor(key string, classID int) (string, error) {
	d, err := r.Describe(key)
	if err != nil {
		return "", err
	}
	return d.NameFor(classID)
}

// ColorFor resolves a class id of dataset key to its legend color.
func (r *Registry) ColorFor(key string, classID int) (string, error) {
	d, err := r.Describe(key)
	if err != nil {
		return "", err
	}
	return d.ColorFor(classID)
}

// Keys returns the registered dataset keys in sorted order.
func (r *Registry) Keys() []string {
	return slices.Clone(r.keys)
}

// Len returns the number of registered datasets.
func (r *Registry) Len() int {
	return len(r.keys)
}
