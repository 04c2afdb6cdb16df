// Package store keeps one MongoDB document per run.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/andrej220/netsurvey/internal/lg"
	"github.com/andrej220/netsurvey/pkg/collect"
	dm "github.com/andrej220/netsurvey/pkg/shared-models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const connectTimeout = 10 * time.Second

type Store struct {
	Client     *mongo.Client
	Collection *mongo.Collection
	lg         lg.Logger
	now        func() time.Time
}

// New connects to uri and verifies the connection with a ping. The store logs
// through the logger carried by ctx.
func New(ctx context.Context, uri, dbName, collName string) (*Store, error) {
	logger := lg.FromContext(ctx)
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return &Store{
		Client:     client,
		Collection: client.Database(dbName).Collection(collName),
		lg:         logger,
		now:        time.Now,
	}, nil
}

func (s *Store) Name() string { return "mongo" }

func buildDocument(runID uuid.UUID, agg *collect.Aggregate, now time.Time) dm.RunDocument {
	return dm.RunDocument{
		RunID:     runID.String(),
		CreatedAt: now.UTC(),
		Devices:   dm.NewDeviceMessages(runID, agg),
	}
}

// Flush upserts the run document keyed by run id.
func (s *Store) Flush(ctx context.Context, runID uuid.UUID, agg *collect.Aggregate) error {
	doc := buildDocument(runID, agg, s.now())
	_, err := s.Collection.ReplaceOne(ctx,
		bson.M{"_id": doc.RunID},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("MongoDB ReplaceOne failed: %w", err)
	}
	s.lg.Info("Run stored", lg.String("collection", s.Collection.Name()), lg.Int("devices", len(doc.Devices)))
	return nil
}

// Load returns the stored document of runID.
func (s *Store) Load(ctx context.Context, runID uuid.UUID) (dm.RunDocument, error) {
	var doc dm.RunDocument
	res := s.Collection.FindOne(ctx, bson.M{"_id": runID.String()})
	if err := res.Err(); err != nil {
		if err == mongo.ErrNoDocuments {
			return doc, fmt.Errorf("run %s not found", runID)
		}
		return doc, fmt.Errorf("MongoDB FindOne failed: %w", err)
	}
	if err := res.Decode(&doc); err != nil {
		return doc, fmt.Errorf("failed to decode document: %w", err)
	}
	return doc, nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return s.Client.Disconnect(ctx)
}
