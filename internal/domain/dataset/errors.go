package dataset

import (
	"errors"
	"fmt"
)

// Sentinel kinds for dataset errors.
var (
	ErrUnknownDataset = errors.New("unknown dataset")
	ErrUnknownClass   = errors.New("unknown class")
	ErrInvalidCatalog = errors.New("invalid dataset catalog")
)

func unknownClass(key string, id int) error {
	return fmt.Errorf("%w: dataset %q has no class %d", ErrUnknownClass, key, id)
}

func unknownDataset(key string) error {
	return fmt.Errorf("%w: %q", ErrUnknownDataset, key)
}
