package accessor

import "sync"

// Lazy defers build to the first call and returns its result from then on.
// It suits the write-once slot callables usually live in:
//
//	var getName = accessor.Lazy(func() (func(*User) string, error) {
//		return accessor.InstanceGetter[*User, string]("name")
//	})
func Lazy[F any](build func() (F, error)) func() (F, error) {
	return sync.OnceValues(build)
}

// Must panics if err is non-nil.
func Must[F any](f F, err error) F {
	if err != nil {
		panic(err)
	}
	return f
}
