package typesystem

// Kind is the numeric kind of a value. The zero value means "not yet
// annotated" and must never reach code generation.
type Kind int

const (
	KindInvalid Kind = iota
	KindI32
	KindF32
)

func (k Kind) String() string {
	switch k {
	case KindI32:
		return "i32"
	case KindF32:
		return "f32"
	}
	return "<unresolved>"
}

func (k Kind) IsValid() bool { return k == KindI32 || k == KindF32 }

// Wider returns the kind both operands widen to: i32 < f32.
func Wider(a, b Kind) Kind {
	if a == KindF32 || b == KindF32 {
		return KindF32
	}
	return KindI32
}

// NeedsWidening reports whether a value of kind from must be converted
// before it can be combined at kind to.
func NeedsWidening(from, to Kind) bool {
	return from == KindI32 && to == KindF32
}

// KindsEqual compares two kind lists positionally.
func KindsEqual(a, b []Kind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
