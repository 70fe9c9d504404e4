package typesystem

// Resolution records how a signature field got its value.
type Resolution int

const (
	// Unresolved fields carry no value at all.
	Unresolved Resolution = iota
	// Provisional values come from the preliminary pass and may be superseded.
	Provisional
	// Inferred values come from a call site or a final body analysis.
	Inferred
	// Defaulted values were assigned because nothing constrained them.
	Defaulted
)

func (r Resolution) String() string {
	switch r {
	case Provisional:
		return "provisional"
	case Inferred:
		return "inferred"
	case Defaulted:
		return "defaulted"
	}
	return "unresolved"
}

// Slot is an explicitly tagged optional value.
type Slot[T any] struct {
	value T
	state Resolution
}

func Resolved[T any](v T, how Resolution) Slot[T] {
	return Slot[T]{value: v, state: how}
}

// Get returns the value and whether the slot holds one.
func (s Slot[T]) Get() (T, bool) {
	return s.value, s.state != Unresolved
}

// Final reports whether the value can no longer be superseded.
func (s Slot[T]) Final() bool {
	return s.state == Inferred || s.state == Defaulted
}

func (s Slot[T]) State() Resolution { return s.state }

func (s *Slot[T]) Set(v T, how Resolution) {
	s.value = v
	s.state = how
}

func (s *Slot[T]) Clear() {
	var zero T
	s.value = zero
	s.state = Unresolved
}
