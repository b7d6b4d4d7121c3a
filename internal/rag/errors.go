package rag

import "fmt"

// UnreachableError means no response arrived: a transport failure on the
// primary (and fallback) host, or the deadline expired.
type UnreachableError struct {
	URL string
	Err error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("RAG backend unreachable at %s: %v", e.URL, e.Err)
}

func (e *UnreachableError) Unwrap() error {
	return e.Err
}

// BackendError means the backend answered with a non-2xx status
type BackendError struct {
	Status int
	Detail string
}

func (e *BackendError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("RAG backend error: status %d", e.Status)
	}
	return fmt.Sprintf("RAG backend error: status %d: %s", e.Status, e.Detail)
}

// DecodeError means a 2xx body did not match the response shape
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("RAG backend response invalid: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
