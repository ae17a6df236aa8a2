// Package try shortens handling of (value, error) pairs where failure is fatal
// (tests and process startup) or has an obvious fallback.
package try

// Fataler is something that can abort, like *testing.T or *log.Logger.
type Fataler interface {
	Fatal(...any)
}

// Result is a (value, error) pair.
type Result[T any] struct {
	value T
	err   error
}

// To captures the results of a call.
//
//	conf := try.To(archiver.LoadConfig(path)).OrFatal(logger)
func To[T any](value T, err error) Result[T] {
	return Result[T]{value: value, err: err}
}

// Get returns the pair. On error, the value is the zero value.
func (r Result[T]) Get() (T, error) {
	if r.err != nil {
		return *new(T), r.err
	}
	return r.value, nil
}

// OrDefault returns d on error.
func (r Result[T]) OrDefault(d T) T {
	if r.err != nil {
		return d
	}
	return r.value
}

// OrFatal calls ftl.Fatal(err) on error, after ftl.Helper() if it has one.
func (r Result[T]) OrFatal(ftl Fataler) T {
	if r.err == nil {
		return r.value
	}
	if h, ok := ftl.(interface{ Helper() }); ok {
		h.Helper()
	}
	ftl.Fatal(r.err)
	return *new(T)
}
