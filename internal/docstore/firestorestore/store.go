// Package firestorestore implements docstore.Store on Cloud Firestore. Store
// paths map one to one onto Firestore paths.
package firestorestore

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"cloud.google.com/go/firestore"
	"github.com/charmbracelet/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PaulBabatuyi/messenger-core/internal/docstore"
)

// Store is a docstore.Store backed by a Firestore client.
type Store struct {
	client *firestore.Client
	log    *log.Logger
}

// New returns a Store using client. Close closes the client.
func New(client *firestore.Client, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	return &Store{client: client, log: logger.WithPrefix("firestore")}
}

var _ docstore.Store = (*Store)(nil)

func fromFirestore(m map[string]any) docstore.Data {
	if m == nil {
		return nil
	}
	out := make(docstore.Data, len(m))
	for k, v := range m {
		out[k] = normalize(v)
	}
	return out
}

func normalize(v any) any {
	switch vv := v.(type) {
	case map[string]any:
		return fromFirestore(vv)
	case []any:
		out := make([]any, len(vv))
		for i, e := range vv {
			out[i] = normalize(e)
		}
		return out
	default:
		return v
	}
}

func toFirestore(data docstore.Data) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if nested, ok := v.(docstore.Data); ok {
			out[k] = toFirestore(nested)
			continue
		}
		out[k] = v
	}
	return out
}

// Add implements docstore.Store.
func (s *Store) Add(ctx context.Context, collection string, data docstore.Data) (string, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return "", err
	}
	ref, _, err := s.client.Collection(collection).Add(ctx, toFirestore(data))
	if err != nil {
		return "", fmt.Errorf("add to %s: %w", collection, err)
	}
	return ref.ID, nil
}

// Set implements docstore.Store.
func (s *Store) Set(ctx context.Context, docPath string, data docstore.Data) error {
	if _, _, err := docstore.SplitDoc(docPath); err != nil {
		return err
	}
	if _, err := s.client.Doc(docPath).Set(ctx, toFirestore(data)); err != nil {
		return fmt.Errorf("set %s: %w", docPath, err)
	}
	return nil
}

// Create implements docstore.Store.
func (s *Store) Create(ctx context.Context, docPath string, data docstore.Data) error {
	if _, _, err := docstore.SplitDoc(docPath); err != nil {
		return err
	}
	if _, err := s.client.Doc(docPath).Create(ctx, toFirestore(data)); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return fmt.Errorf("%w: %s", docstore.ErrAlreadyExists, docPath)
		}
		return fmt.Errorf("create %s: %w", docPath, err)
	}
	return nil
}

// Get implements docstore.Store.
func (s *Store) Get(ctx context.Context, docPath string) (*docstore.Document, error) {
	if _, _, err := docstore.SplitDoc(docPath); err != nil {
		return nil, err
	}
	snap, err := s.client.Doc(docPath).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("%w: %s", docstore.ErrNotFound, docPath)
		}
		return nil, fmt.Errorf("get %s: %w", docPath, err)
	}
	return &docstore.Document{ID: snap.Ref.ID, Path: docPath, Data: fromFirestore(snap.Data())}, nil
}

type subscription struct {
	cancel    context.CancelFunc
	cancelled atomic.Bool
}

func (s *subscription) Cancel() {
	s.cancelled.Store(true)
	s.cancel()
}

// Listen implements docstore.Store with a query snapshot iterator. The first
// snapshot reports every existing document as added.
func (s *Store) Listen(ctx context.Context, q docstore.Query, fn docstore.Listener) (docstore.Subscription, error) {
	if err := docstore.ValidateCollection(q.Collection); err != nil {
		return nil, err
	}
	query := s.client.Collection(q.Collection).Query
	if q.OrderBy != "" {
		query = query.OrderBy(q.OrderBy, firestore.Asc)
	}

	lctx, cancel := context.WithCancel(ctx)
	sub := &subscription{cancel: cancel}
	it := query.Snapshots(lctx)

	go func() {
		defer it.Stop()
		for {
			snap, err := it.Next()
			if sub.cancelled.Load() || lctx.Err() != nil {
				return
			}
			if err != nil {
				fn(nil, fmt.Errorf("listen %s: %w", q.Collection, err))
				return
			}
			changes := make([]docstore.Change, 0, len(snap.Changes))
			for _, ch := range snap.Changes {
				kind, ok := changeType(ch.Kind)
				if !ok {
					s.log.Warn("skipping unknown change kind", "collection", q.Collection, "kind", ch.Kind)
					continue
				}
				doc := docstore.Document{ID: ch.Doc.Ref.ID, Path: docstore.Join(q.Collection, ch.Doc.Ref.ID)}
				if kind != docstore.Removed {
					doc.Data = fromFirestore(ch.Doc.Data())
				}
				changes = append(changes, docstore.Change{Type: kind, Doc: doc})
			}
			fn(changes, nil)
		}
	}()
	return sub, nil
}

func changeType(k firestore.DocumentChangeKind) (docstore.ChangeType, bool) {
	switch k {
	case firestore.DocumentAdded:
		return docstore.Added, true
	case firestore.DocumentModified:
		return docstore.Modified, true
	case firestore.DocumentRemoved:
		return docstore.Removed, true
	}
	return 0, false
}

// Ping implements docstore.Store by reading a document that need not exist.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.Doc("_health/ping").Get(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("firestore ping: %w", err)
	}
	return nil
}

// Close implements docstore.Store.
func (s *Store) Close(ctx context.Context) error {
	if err := s.client.Close(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
