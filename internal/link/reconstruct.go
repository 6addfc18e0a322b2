package link

import (
	"fmt"
	"reflect"
	"unsafe"
)

// Reconstruct returns a func value of type requested that shares entry's
// code pointer. This is the only place that relies on the func value layout:
// a func value is one word pointing at a closure record whose first word is
// the code entry. The two shapes must be layout compatible, argument by
// argument, or the call would misread its registers.
func Reconstruct(requested reflect.Type, entry reflect.Value) (reflect.Value, error) {
	if !entry.IsValid() || entry.Kind() != reflect.Func || entry.IsNil() {
		return reflect.Value{}, fmt.Errorf("reconstruct: no entry point")
	}
	natural := entry.Type()
	if requested == nil || requested.Kind() != reflect.Func {
		return reflect.Value{}, fmt.Errorf("reconstruct: %v is not a func type", requested)
	}
	if err := funcLayoutCompatible(natural, requested); err != nil {
		return reflect.Value{}, fmt.Errorf("reconstruct %s as %s: %w", natural, requested, err)
	}

	src := reflect.New(natural)
	src.Elem().Set(entry)
	dst := reflect.New(requested)
	*(*unsafe.Pointer)(dst.UnsafePointer()) = *(*unsafe.Pointer)(src.UnsafePointer())
	return dst.Elem(), nil
}

func funcLayoutCompatible(a, b reflect.Type) error {
	if a.NumIn() != b.NumIn() || a.NumOut() != b.NumOut() {
		return fmt.Errorf("arity differs")
	}
	if a.IsVariadic() != b.IsVariadic() {
		return fmt.Errorf("variadic flag differs")
	}
	for i := 0; i < a.NumIn(); i++ {
		if !layoutCompatible(a.In(i), b.In(i), 0) {
			return fmt.Errorf("parameter %d: %s and %s differ in layout", i, a.In(i), b.In(i))
		}
	}
	for i := 0; i < a.NumOut(); i++ {
		if !layoutCompatible(a.Out(i), b.Out(i), 0) {
			return fmt.Errorf("result %d: %s and %s differ in layout", i, a.Out(i), b.Out(i))
		}
	}
	return nil
}

// pointerShaped kinds are a single pointer word.
func pointerShaped(k reflect.Kind) bool {
	return k == reflect.Pointer || k == reflect.UnsafePointer
}

func layoutCompatible(a, b reflect.Type, depth int) bool {
	if a == b {
		return true
	}
	if depth > 8 || a.Size() != b.Size() {
		return false
	}
	if pointerShaped(a.Kind()) && pointerShaped(b.Kind()) {
		return true
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch a.Kind() {
	case reflect.Interface:
		// The first word is an itab for non-empty interfaces.
		return a.NumMethod() == 0 && b.NumMethod() == 0
	case reflect.Struct:
		if a.NumField() != b.NumField() {
			return false
		}
		for i := 0; i < a.NumField(); i++ {
			fa, fb := a.Field(i), b.Field(i)
			if fa.Offset != fb.Offset || !layoutCompatible(fa.Type, fb.Type, depth+1) {
				return false
			}
		}
		return true
	case reflect.Array:
		return a.Len() == b.Len() && layoutCompatible(a.Elem(), b.Elem(), depth+1)
	case reflect.Slice, reflect.Chan:
		return layoutCompatible(a.Elem(), b.Elem(), depth+1)
	case reflect.Map:
		// Hashing follows the key type.
		return a.Key() == b.Key() && layoutCompatible(a.Elem(), b.Elem(), depth+1)
	case reflect.Func:
		return funcLayoutCompatible(a, b) == nil
	}
	// Scalars and strings of the same kind.
	return true
}
