package watc

import (
	"fmt"
	"math"
	"reflect"

	"github.com/funvibe/watc/internal/typesystem"
	"github.com/funvibe/watc/internal/vm"
)

// Marshaller converts between Go values and i32/f32 values.
type Marshaller struct{}

func NewMarshaller() *Marshaller {
	return &Marshaller{}
}

// ToValue converts val to a value of the given kind. Integers widen to f32;
// floats are never narrowed to i32.
func (m *Marshaller) ToValue(val interface{}, kind typesystem.Kind) (vm.Value, error) {
	if v, ok := val.(vm.Value); ok {
		if v.Kind != kind {
			return vm.Value{}, fmt.Errorf("cannot pass %s as %s", v.Kind, kind)
		}
		return v, nil
	}

	rv := reflect.ValueOf(val)
	if !rv.IsValid() {
		return vm.Value{}, fmt.Errorf("cannot pass nil as %s", kind)
	}

	var i int64
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i = rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return vm.Value{}, fmt.Errorf("%d does not fit in %s", u, kind)
		}
		i = int64(u)
	case reflect.Bool:
		if rv.Bool() {
			i = 1
		}
	case reflect.Float32, reflect.Float64:
		if kind != typesystem.KindF32 {
			return vm.Value{}, fmt.Errorf("cannot pass %s as %s", rv.Type(), kind)
		}
		return vm.F32(float32(rv.Float())), nil
	default:
		return vm.Value{}, fmt.Errorf("unsupported argument type %s", rv.Type())
	}

	if kind == typesystem.KindF32 {
		return vm.F32(float32(i)), nil
	}
	if i < math.MinInt32 || i > math.MaxInt32 {
		return vm.Value{}, fmt.Errorf("%d does not fit in %s", i, kind)
	}
	return vm.I32(int32(i)), nil
}

// FromValue converts v to a Go value. With a nil target the result is an
// int32 or a float32.
func (m *Marshaller) FromValue(v vm.Value, target reflect.Type) (interface{}, error) {
	if target == nil || target.Kind() == reflect.Interface {
		if v.Kind == typesystem.KindF32 {
			return v.F, nil
		}
		return v.I, nil
	}
	out := reflect.New(target)
	if err := m.Store(v, out.Interface()); err != nil {
		return nil, err
	}
	return out.Elem().Interface(), nil
}

// Store writes v into the variable ptr points to.
func (m *Marshaller) Store(v vm.Value, ptr interface{}) error {
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("expected a non-nil pointer, got %T", ptr)
	}
	dst := rv.Elem()

	switch dst.Kind() {
	case reflect.Interface:
		val, _ := m.FromValue(v, nil)
		dst.Set(reflect.ValueOf(val))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if v.Kind != typesystem.KindI32 {
			return fmt.Errorf("cannot store %s in %s", v.Kind, dst.Type())
		}
		if dst.OverflowInt(int64(v.I)) {
			return fmt.Errorf("%d overflows %s", v.I, dst.Type())
		}
		dst.SetInt(int64(v.I))
	case reflect.Float32, reflect.Float64:
		dst.SetFloat(v.Float())
	case reflect.Bool:
		if v.Kind != typesystem.KindI32 {
			return fmt.Errorf("cannot store %s in %s", v.Kind, dst.Type())
		}
		dst.SetBool(v.I != 0)
	default:
		return fmt.Errorf("unsupported result type %s", dst.Type())
	}
	return nil
}
