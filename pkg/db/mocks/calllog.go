// this package provide "mock" implementation of pkg/db interfaces for testing.
//
// Each mock has Impl (behaviours, set by tests) and Calls (arguments it is called with).
// Calling a method without Impl panics.
package mocks

type CallLog[T any] []T

func (c CallLog[T]) Times() int {
	return len(c)
}
