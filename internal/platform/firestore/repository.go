package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// Document pairs a decoded entity with its snapshot metadata.
type Document[T any] struct {
	ID         string
	Data       T
	UpdateTime time.Time
	ReadTime   time.Time
}

// Decoder hydrates the strongly typed entity from a snapshot.
type Decoder[T any] func(ctx context.Context, snap *firestore.DocumentSnapshot) (T, error)

// QueryBuilder customises Firestore queries before execution.
type QueryBuilder func(query firestore.Query) firestore.Query

// Collection provides typed read access to a collection path such as
// "categories" or "categories/toys/items".
type Collection[T any] struct {
	provider *Provider
	path     string
	decode   Decoder[T]
}

// NewCollection binds a decoder to the collection at path.
func NewCollection[T any](provider *Provider, path string, decode Decoder[T]) *Collection[T] {
	if decode == nil {
		decode = StructDecoder[T]()
	}
	return &Collection[T]{
		provider: provider,
		path:     strings.Trim(strings.TrimSpace(path), "/"),
		decode:   decode,
	}
}

// Sub returns the subcollection named name beneath the document parentID.
func (c *Collection[T]) Sub(parentID, name string) *Collection[T] {
	return &Collection[T]{
		provider: c.provider,
		path:     c.path + "/" + strings.TrimSpace(parentID) + "/" + strings.Trim(strings.TrimSpace(name), "/"),
		decode:   c.decode,
	}
}

// Path reports the slash separated collection path.
func (c *Collection[T]) Path() string {
	return c.path
}

// Get fetches and decodes the document with the given id.
func (c *Collection[T]) Get(ctx context.Context, id string) (Document[T], error) {
	if strings.TrimSpace(id) == "" {
		return Document[T]{}, WrapError(c.op("get"), errors.New("firestore: document id is required"))
	}
	coll, err := c.collectionRef(ctx)
	if err != nil {
		return Document[T]{}, err
	}
	snapshot, err := coll.Doc(id).Get(ctx)
	if err != nil {
		return Document[T]{}, WrapError(c.op("get"), err)
	}
	return c.decodeDocument(ctx, snapshot)
}

// Query executes a collection query and returns the decoded documents in
// store iteration order.
func (c *Collection[T]) Query(ctx context.Context, build QueryBuilder) ([]Document[T], error) {
	coll, err := c.collectionRef(ctx)
	if err != nil {
		return nil, err
	}
	query := coll.Query
	if build != nil {
		query = build(query)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	docs := make([]Document[T], 0)
	for {
		snapshot, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, WrapError(c.op("query"), err)
		}
		decoded, err := c.decodeDocument(ctx, snapshot)
		if err != nil {
			return nil, fmt.Errorf("firestore: decode document %s/%s: %w", c.path, snapshot.Ref.ID, err)
		}
		docs = append(docs, decoded)
	}
	return docs, nil
}

func (c *Collection[T]) decodeDocument(ctx context.Context, snapshot *firestore.DocumentSnapshot) (Document[T], error) {
	entity, err := c.decode(ctx, snapshot)
	if err != nil {
		return Document[T]{}, err
	}
	return Document[T]{
		ID:         snapshot.Ref.ID,
		Data:       entity,
		UpdateTime: snapshot.UpdateTime,
		ReadTime:   snapshot.ReadTime,
	}, nil
}

func (c *Collection[T]) collectionRef(ctx context.Context) (*firestore.CollectionRef, error) {
	if c == nil || c.provider == nil {
		return nil, WrapError(c.op("collection"), errors.New("firestore: provider is nil"))
	}
	if c.path == "" {
		return nil, WrapError(c.op("collection"), errors.New("firestore: collection path is required"))
	}
	client, err := c.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	coll := client.Collection(c.path)
	if coll == nil {
		return nil, WrapError(c.op("collection"), fmt.Errorf("firestore: invalid collection path %q", c.path))
	}
	return coll, nil
}

func (c *Collection[T]) op(action string) string {
	name := "firestore"
	if c != nil && c.path != "" {
		name = strings.ReplaceAll(c.path, "/", ".")
	}
	return name + "." + strings.ToLower(action)
}

// StructDecoder populates the target struct using Firestore's native decoding.
func StructDecoder[T any]() Decoder[T] {
	return func(_ context.Context, snap *firestore.DocumentSnapshot) (T, error) {
		var target T
		err := snap.DataTo(&target)
		return target, err
	}
}

// MapDecoder returns the raw field map for documents whose shape varies.
func MapDecoder() Decoder[map[string]any] {
	return func(_ context.Context, snap *firestore.DocumentSnapshot) (map[string]any, error) {
		data := snap.Data()
		if data == nil {
			data = map[string]any{}
		}
		return data, nil
	}
}
