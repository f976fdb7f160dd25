package parentmap

import (
	"errors"
	"fmt"
)

var (
	ErrConsistency = errors.New("parent map consistency violation")
	ErrPersistence = errors.New("checkpoint persistence failure")
)

// ConsistencyError reports a second insert for an id that already has a parent entry.
type ConsistencyError struct {
	ID        ObjectID
	Existing  ParentID
	Attempted ParentID
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("object %d already mapped to parent %s, refusing %s", e.ID, e.Existing, e.Attempted)
}

func (e *ConsistencyError) Is(target error) bool {
	return target == ErrConsistency
}

// PersistenceError wraps a checkpoint read or write failure.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s checkpoint %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}
