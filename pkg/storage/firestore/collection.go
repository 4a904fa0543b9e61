package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrNoDocument is returned by DocumentRef.Get when the document does not exist.
var ErrNoDocument = errors.New("document does not exist")

type ToFirestoreFunc[T any] func(*T) map[string]interface{}
type FromFirestoreFunc[T any] func(map[string]interface{}) *T

type Collection[T any] struct {
	Ref           *firestore.CollectionRef
	ToFirestore   ToFirestoreFunc[T]
	FromFirestore FromFirestoreFunc[T]
}

func (c *Collection[T]) Doc(id string) *DocumentRef[T] {
	return &DocumentRef[T]{
		Ref:           c.Ref.Doc(id),
		ToFirestore:   c.ToFirestore,
		FromFirestore: c.FromFirestore,
	}
}

type DocumentRef[T any] struct {
	Ref           *firestore.DocumentRef
	ToFirestore   ToFirestoreFunc[T]
	FromFirestore FromFirestoreFunc[T]
}

func (d *DocumentRef[T]) ID() string {
	return d.Ref.ID
}

func (d *DocumentRef[T]) Get(ctx context.Context) (*T, error) {
	snap, err := d.Ref.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNoDocument
		}
		return nil, err
	}
	return d.FromFirestore(snap.Data()), nil
}

// Set replaces the whole document.
func (d *DocumentRef[T]) Set(ctx context.Context, data *T) error {
	_, err := d.Ref.Set(ctx, d.ToFirestore(data))
	return err
}

func (d *DocumentRef[T]) Delete(ctx context.Context) error {
	_, err := d.Ref.Delete(ctx)
	return err
}
