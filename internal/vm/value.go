package vm

import (
	"strconv"

	"github.com/funvibe/watc/internal/typesystem"
)

// Value is one wasm value: an i32 or an f32.
type Value struct {
	Kind typesystem.Kind
	I    int32
	F    float32
}

func I32(v int32) Value   { return Value{Kind: typesystem.KindI32, I: v} }
func F32(v float32) Value { return Value{Kind: typesystem.KindF32, F: v} }

// Zero is the initial value of a local of kind k.
func Zero(k typesystem.Kind) Value { return Value{Kind: k} }

func boolVal(b bool) Value {
	if b {
		return I32(1)
	}
	return I32(0)
}

// Float returns the value as float64 regardless of kind.
func (v Value) Float() float64 {
	if v.Kind == typesystem.KindF32 {
		return float64(v.F)
	}
	return float64(v.I)
}

func (v Value) String() string {
	if v.Kind == typesystem.KindF32 {
		return strconv.FormatFloat(float64(v.F), 'g', -1, 32)
	}
	return strconv.FormatInt(int64(v.I), 10)
}
