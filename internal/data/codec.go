package data

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/PaulBabatuyi/messenger-core/internal/docstore"
)

// Models are converted to and from document fields through their bson tags,
// so every backend stores the same field names.

func encode(v any) (docstore.Data, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var d bson.D
	if err := bson.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	out := make(docstore.Data, len(d))
	for _, e := range d {
		out[e.Key] = fromBSON(e.Value)
	}
	return out, nil
}

func fromBSON(v any) any {
	switch vv := v.(type) {
	case bson.DateTime:
		return vv.Time().UTC()
	case int32:
		return int64(vv)
	default:
		return v
	}
}

func decode(doc docstore.Document, v any, required ...string) error {
	for _, field := range required {
		if val, ok := doc.Data[field]; !ok || val == nil {
			return fmt.Errorf("%w: %s: missing field %q", ErrDecodeFailed, doc.Path, field)
		}
	}
	raw, err := bson.Marshal(doc.Data)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDecodeFailed, doc.Path, err)
	}
	if err := bson.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDecodeFailed, doc.Path, err)
	}
	return nil
}

// DecodeMessage reads a mailbox document.
func DecodeMessage(doc docstore.Document) (Message, error) {
	var m Message
	if err := decode(doc, &m, "fromId", "toId", "text", "timestamp"); err != nil {
		return Message{}, err
	}
	m.ID = doc.ID
	return m, nil
}

// DecodeRecentMessage reads a summary document. The profile image is
// optional.
func DecodeRecentMessage(doc docstore.Document) (RecentMessage, error) {
	var r RecentMessage
	if err := decode(doc, &r, "text", "fromId", "toId", "email", "timestamp"); err != nil {
		return RecentMessage{}, err
	}
	r.ID = doc.ID
	return r, nil
}

// DecodeUser reads a profile document.
func DecodeUser(doc docstore.Document) (User, error) {
	var u User
	if err := decode(doc, &u, "uid", "email"); err != nil {
		return User{}, err
	}
	return u, nil
}
