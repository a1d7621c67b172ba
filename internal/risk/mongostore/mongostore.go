// Package mongostore keeps risk training files in GridFS and trained models
// in a collection.
package mongostore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"nganiriza-api/internal/risk"
)

const modelsCollection = "models"

type Store struct {
	bucket *mongo.GridFSBucket
	models *mongo.Collection
}

// Connect opens a client and pings it.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

func New(db *mongo.Database) *Store {
	return &Store{
		bucket: db.GridFSBucket(),
		models: db.Collection(modelsCollection),
	}
}

func (s *Store) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	id, err := s.bucket.UploadFromStream(ctx, name, r)
	if err != nil {
		return "", err
	}
	return id.Hex(), nil
}

type fileDoc struct {
	ID       bson.ObjectID `bson:"_id"`
	Filename string        `bson:"filename"`
}

// Latest downloads the most recently uploaded file.
func (s *Store) Latest(ctx context.Context) (string, []byte, error) {
	cur, err := s.bucket.Find(ctx, bson.D{},
		options.GridFSFind().SetSort(bson.D{{Key: "uploadDate", Value: -1}}).SetLimit(1))
	if err != nil {
		return "", nil, err
	}
	defer cur.Close(ctx)

	if !cur.Next(ctx) {
		if err := cur.Err(); err != nil {
			return "", nil, err
		}
		return "", nil, risk.ErrNoFiles
	}
	var f fileDoc
	if err := cur.Decode(&f); err != nil {
		return "", nil, err
	}

	var buf bytes.Buffer
	if _, err := s.bucket.DownloadToStream(ctx, f.ID, &buf); err != nil {
		return "", nil, fmt.Errorf("download %s: %w", f.Filename, err)
	}
	return f.Filename, buf.Bytes(), nil
}

type modelDoc struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	Source    string        `bson:"source"`
	Accuracy  float64       `bson:"accuracy"`
	Rows      int           `bson:"rows"`
	CreatedAt time.Time     `bson:"created_at"`
	// JSON-encoded risk.Snapshot
	Snapshot []byte `bson:"snapshot"`
}

func (s *Store) SaveModel(ctx context.Context, snap risk.Snapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = s.models.InsertOne(ctx, modelDoc{
		Source:    snap.Source,
		Accuracy:  snap.Metrics.Accuracy,
		Rows:      snap.Metrics.Rows,
		CreatedAt: time.Now().UTC(),
		Snapshot:  b,
	})
	return err
}

func (s *Store) LatestModel(ctx context.Context) (*risk.Snapshot, error) {
	var doc modelDoc
	err := s.models.FindOne(ctx, bson.D{},
		options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, risk.ErrNoModel
	}
	if err != nil {
		return nil, err
	}
	var snap risk.Snapshot
	if err := json.Unmarshal(doc.Snapshot, &snap); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", doc.ID.Hex(), err)
	}
	return &snap, nil
}
