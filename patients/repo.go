package patients

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"

	"github.com/tidepool-org/hydration/store"
)

const (
	patientsCollectionName = "patients"
)

//go:generate mockgen --build_flags=--mod=mod -source=./repo.go -destination=./test/mock_repository.go -package test MockRepository

type Repository interface {
	Get(ctx context.Context, id string) (*Patient, error)
	List(ctx context.Context, filter Filter, pagination store.Pagination) ([]*Patient, error)
	Create(ctx context.Context, patient Patient) (*Patient, error)
	// Replace stores the patient if the stored revision still equals patient.Revision
	// and returns the stored document with the incremented revision.
	Replace(ctx context.Context, patient Patient) (*Patient, error)
}

func NewRepository(db *mongo.Database, lifecycle fx.Lifecycle) (Repository, error) {
	repo := &repository{
		collection: db.Collection(patientsCollectionName),
	}

	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return repo.Initialize(ctx)
		},
	})

	return repo, nil
}

type repository struct {
	collection *mongo.Collection
}

func (r *repository) Initialize(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "caregiverId", Value: 1},
				{Key: "name", Value: 1},
			},
			Options: options.Index().
				SetBackground(true).
				SetName("CaregiverPatients"),
		},
		{
			Keys: bson.D{
				{Key: "updatedTime", Value: -1},
			},
			Options: options.Index().
				SetBackground(true).
				SetName("UpdatedTime"),
		},
	})
	return err
}

func (r *repository) Get(ctx context.Context, id string) (*Patient, error) {
	patient := &Patient{}
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(patient)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("error fetching patient: %w", err)
	}

	return patient, nil
}

func (r *repository) List(ctx context.Context, filter Filter, pagination store.Pagination) ([]*Patient, error) {
	opts := options.Find().
		SetLimit(int64(pagination.Limit)).
		SetSkip(int64(pagination.Offset)).
		SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}})

	selector := bson.M{}
	if filter.CaregiverId != nil {
		selector["caregiverId"] = *filter.CaregiverId
	}

	cursor, err := r.collection.Find(ctx, selector, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing patients: %w", err)
	}

	var patients []*Patient
	if err = cursor.All(ctx, &patients); err != nil {
		return nil, fmt.Errorf("error decoding patients list: %w", err)
	}

	return patients, nil
}

func (r *repository) Create(ctx context.Context, patient Patient) (*Patient, error) {
	if _, err := r.collection.InsertOne(ctx, patient); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("error creating patient: %w", err)
	}

	return r.Get(ctx, patient.Id)
}

func (r *repository) Replace(ctx context.Context, patient Patient) (*Patient, error) {
	selector := bson.M{
		"_id":      patient.Id,
		"revision": patient.Revision,
	}

	next := patient
	next.Revision++
	res, err := r.collection.ReplaceOne(ctx, selector, next)
	if err != nil {
		return nil, fmt.Errorf("error updating patient: %w", err)
	}
	if res.MatchedCount == 0 {
		count, err := r.collection.CountDocuments(ctx, bson.M{"_id": patient.Id})
		if err != nil {
			return nil, fmt.Errorf("error updating patient: %w", err)
		}
		if count == 0 {
			return nil, ErrNotFound
		}
		return nil, ErrConflict
	}

	return &next, nil
}
