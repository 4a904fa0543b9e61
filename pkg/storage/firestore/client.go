package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"

	"github.com/stravabot/server/pkg/credentials"
)

// CollectionCredentials holds one document per chat: strava_credentials/{userId}
const CollectionCredentials = "strava_credentials"

type Client struct {
	fs *firestore.Client
}

func NewClient(client *firestore.Client) *Client {
	return &Client{fs: client}
}

func (c *Client) Close() error {
	return c.fs.Close()
}

func (c *Client) Credentials() *Collection[credentials.Record] {
	return &Collection[credentials.Record]{
		Ref:           c.fs.Collection(CollectionCredentials),
		ToFirestore:   CredentialToFirestore,
		FromFirestore: FirestoreToCredential,
	}
}

// CredentialStore implements credentials.Store on Firestore. The document
// id is the user id, so a row can never be duplicated.
type CredentialStore struct {
	client *Client
}

func NewCredentialStore(client *Client) *CredentialStore {
	return &CredentialStore{client: client}
}

func (s *CredentialStore) Get(ctx context.Context, userID string) (*credentials.Record, error) {
	rec, err := s.client.Credentials().Doc(userID).Get(ctx)
	if errors.Is(err, ErrNoDocument) {
		return nil, credentials.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if rec.UserID == "" {
		rec.UserID = userID
	}
	return rec, nil
}

func (s *CredentialStore) Put(ctx context.Context, record *credentials.Record) error {
	return s.client.Credentials().Doc(record.UserID).Set(ctx, record)
}

func (s *CredentialStore) Delete(ctx context.Context, userID string) error {
	return s.client.Credentials().Doc(userID).Delete(ctx)
}
