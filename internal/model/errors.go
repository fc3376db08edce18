package model

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidException = errors.New("invalid schedule exception")
	ErrInvalidSchedule  = errors.New("invalid schedule")
	ErrInvalidService   = errors.New("invalid service")
	ErrServiceNotFound  = errors.New("service not found")
	ErrEmployeeNotFound = errors.New("employee not found")
	ErrUpstreamFetch    = errors.New("upstream fetch failed")
)

// UpstreamError wraps a failure of a storage collaborator.
type UpstreamError struct {
	Op  string
	Err error
}

// Upstream wraps err unless it is nil or already a lookup/upstream error.
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrServiceNotFound) || errors.Is(err, ErrEmployeeNotFound) || errors.Is(err, ErrUpstreamFetch) {
		return err
	}
	return &UpstreamError{Op: op, Err: err}
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrUpstreamFetch, e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstreamFetch }
