// Package store is the persistence boundary: the Mongo document store
// (authoritative, unique-indexed on identity_key), the Redis pre-fetch
// dedup cache and the optional MinIO raw-artifact archive.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/qfeng2015/speech-harvester/internal/config"
	"github.com/qfeng2015/speech-harvester/internal/models"
	"github.com/qfeng2015/speech-harvester/pkg/logger"
)

// Store wraps the Mongo collections used by the pipeline and the query
// service. The unique index on identity_key is the authoritative dedup
// constraint; a racing duplicate insert surfaces as models.ErrDuplicate.
type Store struct {
	client    *mongo.Client
	speeches  *mongo.Collection
	runState  *mongo.Collection
	runLog    *mongo.Collection
	errorLog  *mongo.Collection
	opTimeout time.Duration
	logger    logger.Logger
}

// NewStore connects, pings and ensures indexes. A backend that cannot be
// reached at startup is fatal and reported as models.ErrStoreUnavailable.
func NewStore(ctx context.Context, cfg config.MongoConfig, log logger.Logger) (*Store, error) {
	dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	client, err := mongo.Connect(dialCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	if err := client.Ping(dialCtx, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}

	db := client.Database(cfg.Database)
	s := &Store{
		client:    client,
		speeches:  db.Collection(cfg.Collection),
		runState:  db.Collection("run_state"),
		runLog:    db.Collection("run_reports"),
		errorLog:  db.Collection("ingest_errors"),
		opTimeout: cfg.OpTimeout,
		logger:    log.Named("store"),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("can't create indexes: %w", err)
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.speeches.Indexes().CreateMany(opCtx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "identity_key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "title", Value: 1}},
		},
	})
	return err
}

// UpsertSpeech writes doc keyed by its identity key. Racing duplicate
// inserts lose benignly: the unique-index violation comes back as
// models.ErrDuplicate, which the caller counts as a skip.
func (s *Store) UpsertSpeech(ctx context.Context, doc *models.Speech) error {
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	filter := bson.M{"identity_key": doc.IdentityKey}
	update := bson.M{"$setOnInsert": doc}
	res, err := s.speeches.UpdateOne(opCtx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.ErrDuplicate
		}
		if isConnectionErr(err) {
			return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
		}
		return fmt.Errorf("upsert %s: %w", doc.IdentityKey, err)
	}
	if res.UpsertedCount == 0 && res.ModifiedCount == 0 {
		// Matched an existing record: somebody persisted it first.
		return models.ErrDuplicate
	}
	return nil
}

// Exists answers whether an identity key is already persisted.
func (s *Store) Exists(ctx context.Context, identityKey string) (bool, error) {
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	err := s.speeches.FindOne(opCtx, bson.M{"identity_key": identityKey},
		options.FindOne().SetProjection(bson.M{"identity_key": 1})).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// FindByTitleOrKey looks a speech up by exact title first, then by
// identity key. models.ErrNotFound when nothing matches.
func (s *Store) FindByTitleOrKey(ctx context.Context, query string) (*models.Speech, error) {
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	var doc models.Speech
	err := s.speeches.FindOne(opCtx, bson.M{"title": query}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		err = s.speeches.FindOne(opCtx, bson.M{"identity_key": query}).Decode(&doc)
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// LoadRunState reads the resumable marker; a nil state means no prior run.
func (s *Store) LoadRunState(ctx context.Context) (*models.RunState, error) {
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	var state models.RunState
	err := s.runState.FindOne(opCtx, bson.M{}).Decode(&state)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// SaveRunState persists the marker. Called by the coordinator only, after
// a partition completes.
func (s *Store) SaveRunState(ctx context.Context, state *models.RunState) error {
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.runState.UpdateOne(opCtx, bson.M{},
		bson.M{"$set": state}, options.Update().SetUpsert(true))
	return err
}

// AppendError writes one entry to the append-only failure log. Logging a
// failure must never fail the run, so errors here are only logged.
func (s *Store) AppendError(ctx context.Context, rec *models.ErrorRecord) {
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	if _, err := s.errorLog.InsertOne(opCtx, rec); err != nil {
		s.logger.Error("can't append error record",
			logger.String("key", rec.Key),
			logger.Error(err),
		)
	}
}

// RecentRunReports returns up to limit reports, newest first.
func (s *Store) RecentRunReports(ctx context.Context, limit int) ([]models.RunReport, error) {
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	cursor, err := s.runLog.Find(opCtx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}}).SetLimit(int64(limit)))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(opCtx)

	var reports []models.RunReport
	if err := cursor.All(opCtx, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

// SaveRunReport archives the counts of a finished run.
func (s *Store) SaveRunReport(ctx context.Context, report *models.RunReport) error {
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.runLog.InsertOne(opCtx, report)
	return err
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

func isConnectionErr(err error) bool {
	return mongo.IsTimeout(err) || mongo.IsNetworkError(err)
}
