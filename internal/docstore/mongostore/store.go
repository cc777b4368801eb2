// Package mongostore implements docstore.Store on MongoDB.
//
// The first segment of a store path names the MongoDB collection. The rest of
// the parent path is kept in the ParentField of each document, and the path
// relative to the MongoDB collection is the document _id:
//
//	messages/alice/bob/42  ->  collection "messages", _id "alice/bob/42", _parent "alice/bob"
//	users/alice            ->  collection "users",    _id "alice",        _parent ""
//
// Listeners are served by a change stream opened before the initial query,
// so the deployment must be a replica set.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/PaulBabatuyi/messenger-core/internal/docstore"
)

// ParentField holds the parent path of a document inside its collection.
const ParentField = "_parent"

// Store is a docstore.Store backed by a MongoDB database.
type Store struct {
	db  *mongo.Database
	log *log.Logger
}

// New returns a Store using db. The caller owns the underlying client.
func New(db *mongo.Database, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	return &Store{db: db, log: logger.WithPrefix("mongostore")}
}

var _ docstore.Store = (*Store)(nil)

// location is where a store path lives in MongoDB.
type location struct {
	root   string // MongoDB collection
	parent string // parent path inside root
	id     string // last path segment
	key    string // _id
}

func splitRoot(collection string) (root, parent string) {
	root, parent, _ = strings.Cut(collection, "/")
	return root, parent
}

func keyOf(parent, id string) string {
	if parent == "" {
		return id
	}
	return parent + "/" + id
}

func locate(docPath string) (location, error) {
	collection, id, err := docstore.SplitDoc(docPath)
	if err != nil {
		return location{}, err
	}
	root, parent := splitRoot(collection)
	return location{root: root, parent: parent, id: id, key: keyOf(parent, id)}, nil
}

func encode(data docstore.Data, loc location) bson.M {
	doc := bson.M{}
	for k, v := range data {
		doc[k] = v
	}
	doc["_id"] = loc.key
	doc[ParentField] = loc.parent
	return doc
}

// decode strips the path fields and converts BSON values to docstore values.
func decode(doc bson.M) docstore.Data {
	if doc == nil {
		return nil
	}
	out := make(docstore.Data, len(doc))
	for k, v := range doc {
		if k == "_id" || k == ParentField {
			continue
		}
		out[k] = normalize(v)
	}
	return out
}

func normalize(v any) any {
	switch vv := v.(type) {
	case bson.DateTime:
		return vv.Time().UTC()
	case int32:
		return int64(vv)
	case bson.M:
		out := make(docstore.Data, len(vv))
		for k, e := range vv {
			out[k] = normalize(e)
		}
		return out
	case bson.D:
		out := make(docstore.Data, len(vv))
		for _, e := range vv {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(vv))
		for i, e := range vv {
			out[i] = normalize(e)
		}
		return out
	default:
		return v
	}
}

// Add implements docstore.Store. Ids are ObjectID hex strings.
func (s *Store) Add(ctx context.Context, collection string, data docstore.Data) (string, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return "", err
	}
	root, parent := splitRoot(collection)
	id := bson.NewObjectID().Hex()
	loc := location{root: root, parent: parent, id: id, key: keyOf(parent, id)}

	if _, err := s.db.Collection(root).InsertOne(ctx, encode(data, loc)); err != nil {
		return "", fmt.Errorf("insert into %s: %w", collection, err)
	}
	return id, nil
}

// Set implements docstore.Store.
func (s *Store) Set(ctx context.Context, docPath string, data docstore.Data) error {
	loc, err := locate(docPath)
	if err != nil {
		return err
	}
	_, err = s.db.Collection(loc.root).ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: loc.key}},
		encode(data, loc),
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", docPath, err)
	}
	return nil
}

// Create implements docstore.Store.
func (s *Store) Create(ctx context.Context, docPath string, data docstore.Data) error {
	loc, err := locate(docPath)
	if err != nil {
		return err
	}
	if _, err := s.db.Collection(loc.root).InsertOne(ctx, encode(data, loc)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", docstore.ErrAlreadyExists, docPath)
		}
		return fmt.Errorf("insert %s: %w", docPath, err)
	}
	return nil
}

// Get implements docstore.Store.
func (s *Store) Get(ctx context.Context, docPath string) (*docstore.Document, error) {
	loc, err := locate(docPath)
	if err != nil {
		return nil, err
	}
	var doc bson.M
	err = s.db.Collection(loc.root).FindOne(ctx, bson.D{{Key: "_id", Value: loc.key}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", docstore.ErrNotFound, docPath)
		}
		return nil, fmt.Errorf("find %s: %w", docPath, err)
	}
	return &docstore.Document{ID: loc.id, Path: docPath, Data: decode(doc)}, nil
}

// changeEvent is the subset of a change stream event the store reads.
type changeEvent struct {
	OperationType string `bson:"operationType"`
	DocumentKey   struct {
		ID string `bson:"_id"`
	} `bson:"documentKey"`
	FullDocument bson.M `bson:"fullDocument"`
}

func (ev changeEvent) toChange(collection string) (docstore.Change, bool) {
	key := ev.DocumentKey.ID
	id := key[strings.LastIndex(key, "/")+1:]
	doc := docstore.Document{ID: id, Path: docstore.Join(collection, id)}

	switch ev.OperationType {
	case "insert":
		doc.Data = decode(ev.FullDocument)
		return docstore.Change{Type: docstore.Added, Doc: doc}, true
	case "replace", "update":
		if ev.FullDocument == nil {
			// deleted before the lookup ran; the delete event follows
			return docstore.Change{}, false
		}
		doc.Data = decode(ev.FullDocument)
		return docstore.Change{Type: docstore.Modified, Doc: doc}, true
	case "delete":
		return docstore.Change{Type: docstore.Removed, Doc: doc}, true
	default:
		return docstore.Change{}, false
	}
}

type subscription struct {
	cancel    context.CancelFunc
	cancelled atomic.Bool
}

func (s *subscription) Cancel() {
	s.cancelled.Store(true)
	s.cancel()
}

// Listen implements docstore.Store.
func (s *Store) Listen(ctx context.Context, q docstore.Query, fn docstore.Listener) (docstore.Subscription, error) {
	if err := docstore.ValidateCollection(q.Collection); err != nil {
		return nil, err
	}
	root, parent := splitRoot(q.Collection)
	coll := s.db.Collection(root)

	lctx, cancel := context.WithCancel(ctx)

	prefix := ""
	if parent != "" {
		prefix = parent + "/"
	}
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "fullDocument." + ParentField, Value: parent}},
			bson.D{{Key: "documentKey._id", Value: bson.D{
				{Key: "$regex", Value: "^" + regexp.QuoteMeta(prefix) + "[^/]+$"},
			}}},
		}}}}},
	}
	stream, err := coll.Watch(lctx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("watch %s: %w", q.Collection, err)
	}

	findOpts := options.Find()
	if q.OrderBy != "" {
		findOpts.SetSort(bson.D{{Key: q.OrderBy, Value: 1}})
	}
	cursor, err := coll.Find(lctx, bson.D{{Key: ParentField, Value: parent}}, findOpts)
	if err != nil {
		_ = stream.Close(context.Background())
		cancel()
		return nil, fmt.Errorf("find %s: %w", q.Collection, err)
	}
	var docs []bson.M
	if err := cursor.All(lctx, &docs); err != nil {
		_ = stream.Close(context.Background())
		cancel()
		return nil, fmt.Errorf("read %s: %w", q.Collection, err)
	}

	initial := make([]docstore.Change, 0, len(docs))
	seen := make(map[string]bool, len(docs))
	for _, d := range docs {
		key, _ := d["_id"].(string)
		id := key[strings.LastIndex(key, "/")+1:]
		seen[id] = true
		initial = append(initial, docstore.Change{
			Type: docstore.Added,
			Doc:  docstore.Document{ID: id, Path: docstore.Join(q.Collection, id), Data: decode(d)},
		})
	}

	sub := &subscription{cancel: cancel}
	go s.run(lctx, stream, q.Collection, initial, seen, fn, sub)
	return sub, nil
}

func (s *Store) run(ctx context.Context, stream *mongo.ChangeStream, collection string,
	initial []docstore.Change, seen map[string]bool, fn docstore.Listener, sub *subscription) {
	defer func() { _ = stream.Close(context.Background()) }()

	fn(initial, nil)

	for stream.Next(ctx) {
		var ev changeEvent
		if err := stream.Decode(&ev); err != nil {
			s.log.Warn("skipping undecodable change event", "collection", collection, "err", err)
			continue
		}
		change, ok := ev.toChange(collection)
		if !ok {
			continue
		}
		// inserts that raced the initial query were already delivered
		if change.Type == docstore.Added && seen[change.Doc.ID] {
			delete(seen, change.Doc.ID)
			continue
		}
		if sub.cancelled.Load() {
			return
		}
		fn([]docstore.Change{change}, nil)
	}

	if ctx.Err() != nil || sub.cancelled.Load() {
		return
	}
	err := stream.Err()
	if err == nil {
		err = errors.New("change stream closed")
	}
	fn(nil, fmt.Errorf("listen %s: %w", collection, err))
}

// Ping implements docstore.Store.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, readpref.Primary())
}

// Close implements docstore.Store. The client is disconnected by its owner.
func (s *Store) Close(ctx context.Context) error {
	return nil
}
