package test

import (
	"fmt"

	"go.uber.org/mock/gomock"
)

type predicateMatcher[T any] struct {
	predicate func(T) bool
	last      interface{}
}

func (p *predicateMatcher[T]) Matches(x interface{}) bool {
	p.last = x
	value, ok := x.(T)
	return ok && p.predicate(value)
}

func (p *predicateMatcher[T]) String() string {
	var zero T
	return fmt.Sprintf("is a %T accepted by the predicate (last candidate %+v)", zero, p.last)
}

// Match accepts arguments of type T for which the predicate holds.
func Match[T any](predicate func(T) bool) gomock.Matcher {
	return &predicateMatcher[T]{predicate: predicate}
}
