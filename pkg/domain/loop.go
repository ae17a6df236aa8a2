package domain

import (
	"errors"
	"fmt"
	"slices"
)

// LoopType names a recurring task of the archiver.
type LoopType string

const (
	Packaging LoopType = "packaging"
	Upload    LoopType = "upload"
	Reconcile LoopType = "reconcile"
)

// LoopTypes are all known loop types.
var LoopTypes = []LoopType{Packaging, Upload, Reconcile}

var ErrUnknownLoopType = errors.New("unknown loop type")

func (lt LoopType) String() string {
	return string(lt)
}

// AsLoopType parses s, and returns an error wrapping ErrUnknownLoopType for unknown names.
func AsLoopType(s string) (LoopType, error) {
	lt := LoopType(s)
	if !slices.Contains(LoopTypes, lt) {
		return lt, fmt.Errorf("%w: %q (one of %v)", ErrUnknownLoopType, s, LoopTypes)
	}
	return lt, nil
}
