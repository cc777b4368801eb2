// Package docstore defines the document store the chat core is built on:
// hierarchical collections of documents, point reads and writes, and ordered
// change subscriptions. Backends live in subpackages; Memory is the
// in-process implementation.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned by Get when no document exists at the path.
	ErrNotFound = errors.New("docstore: document not found")
	// ErrAlreadyExists is returned by Create when the path is taken.
	ErrAlreadyExists = errors.New("docstore: document already exists")
	// ErrInvalidPath is returned for malformed collection or document paths.
	ErrInvalidPath = errors.New("docstore: invalid path")
	// ErrClosed is returned by a store after Close.
	ErrClosed = errors.New("docstore: store closed")
)

// Data is the field map of a document. Values are limited to string, bool,
// int64, float64, time.Time, nil and nested Data.
type Data map[string]any

// Document is a snapshot of one stored document.
type Document struct {
	ID   string
	Path string
	Data Data
}

// ChangeType classifies an entry of a change batch.
type ChangeType int

const (
	Added ChangeType = iota + 1
	Modified
	Removed
)

func (t ChangeType) String() string {
	switch t {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Removed:
		return "removed"
	default:
		return fmt.Sprintf("ChangeType(%d)", int(t))
	}
}

// Change is one document-level change delivered to a listener.
type Change struct {
	Type ChangeType
	Doc  Document
}

// Query selects a collection and the field its documents are ordered by.
type Query struct {
	Collection string
	OrderBy    string
}

// Listener receives change batches in store order. The first batch holds
// every existing document as Added. A non-nil err is terminal: the
// subscription is cancelled after the call returns.
type Listener func(changes []Change, err error)

// Subscription is the handle of an attached listener.
type Subscription interface {
	// Cancel detaches the listener. It is idempotent and may be called from
	// inside the listener.
	Cancel()
}

// Store is the document store consumed by the chat core.
//
//go:generate mockgen -destination=mocks/mock_store.go -package=mocks github.com/PaulBabatuyi/messenger-core/internal/docstore Store
type Store interface {
	// Add writes data under a store-generated id and returns the id.
	Add(ctx context.Context, collection string, data Data) (string, error)
	// Set creates or fully replaces the document at docPath.
	Set(ctx context.Context, docPath string, data Data) error
	// Create writes the document at docPath only if it does not exist.
	Create(ctx context.Context, docPath string, data Data) error
	// Get reads the document at docPath.
	Get(ctx context.Context, docPath string) (*Document, error)
	// Listen attaches fn to the collection in q. The subscription ends on
	// Cancel, when ctx is done, or after a terminal error.
	Listen(ctx context.Context, q Query, fn Listener) (Subscription, error)
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases backend resources.
	Close(ctx context.Context) error
}

// Join builds a path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

func splitPath(p string) ([]string, error) {
	if p == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	parts := strings.Split(p, "/")
	for _, s := range parts {
		if s == "" {
			return nil, fmt.Errorf("%w: %q has an empty segment", ErrInvalidPath, p)
		}
	}
	return parts, nil
}

// ValidateCollection checks that p names a collection (odd segment count).
func ValidateCollection(p string) error {
	parts, err := splitPath(p)
	if err != nil {
		return err
	}
	if len(parts)%2 != 1 {
		return fmt.Errorf("%w: %q is not a collection path", ErrInvalidPath, p)
	}
	return nil
}

// SplitDoc splits a document path into its collection path and id.
func SplitDoc(p string) (collection, id string, err error) {
	parts, err := splitPath(p)
	if err != nil {
		return "", "", err
	}
	if len(parts)%2 != 0 {
		return "", "", fmt.Errorf("%w: %q is not a document path", ErrInvalidPath, p)
	}
	return Join(parts[:len(parts)-1]...), parts[len(parts)-1], nil
}

// Clone returns a deep copy of d.
func (d Data) Clone() Data {
	if d == nil {
		return nil
	}
	out := make(Data, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch vv := v.(type) {
	case Data:
		return vv.Clone()
	case map[string]any:
		return Data(vv).Clone()
	case []any:
		out := make([]any, len(vv))
		for i, e := range vv {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// CompareValues orders two field values of the same kind. Missing values
// sort first; values of different kinds compare equal.
func CompareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	switch av := a.(type) {
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case int64:
		if bv, ok := b.(int64); ok {
			return compareOrdered(av, bv)
		}
	case float64:
		if bv, ok := b.(float64); ok {
			return compareOrdered(av, bv)
		}
	}
	return 0
}

func compareOrdered[T int64 | float64 | uint64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
