package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// NewMongoStore connects to uri and uses the events, lists and items collections of database.
func NewMongoStore(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(database)
	return &Store{
		Events: &mongoRepo[*Event]{
			coll:  db.Collection("events"),
			sort:  bson.D{{Key: "startTime", Value: 1}},
			newFn: func() *Event { return &Event{} },
			now:   time.Now,
		},
		Lists: &mongoRepo[*List]{
			coll:  db.Collection("lists"),
			sort:  bson.D{{Key: "name", Value: 1}},
			newFn: func() *List { return &List{} },
			now:   time.Now,
		},
		Items: &mongoRepo[*Item]{
			coll:  db.Collection("items"),
			sort:  bson.D{{Key: "createdAt", Value: 1}},
			newFn: func() *Item { return &Item{} },
			now:   time.Now,
		},
		closer: func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return client.Disconnect(ctx)
		},
	}, nil
}

type mongoRepo[T Entity[T]] struct {
	coll  *mongo.Collection
	sort  bson.D
	newFn func() T
	now   func() time.Time
}

func (r *mongoRepo[T]) Create(ctx context.Context, rec T) (T, error) {
	c := rec.Clone()
	if c.GetID() == "" {
		c.SetID(NewID())
	}
	c.Touch(r.now().UTC())
	if _, err := r.coll.InsertOne(ctx, c); err != nil {
		var zero T
		return zero, fmt.Errorf("failed to insert into %s: %w", r.coll.Name(), err)
	}
	return c, nil
}

func (r *mongoRepo[T]) FindByID(ctx context.Context, id string) (T, error) {
	rec := r.newFn()
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(rec); err != nil {
		var zero T
		if errors.Is(err, mongo.ErrNoDocuments) {
			return zero, ErrNotFound
		}
		return zero, fmt.Errorf("failed to read %s: %w", r.coll.Name(), err)
	}
	return rec, nil
}

func (r *mongoRepo[T]) Find(ctx context.Context, f Filter) ([]T, error) {
	filter, err := toBSON(f)
	if err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(r.sort)
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", r.coll.Name(), err)
	}
	defer cur.Close(ctx)

	var out []T
	for cur.Next(ctx) {
		rec := r.newFn()
		if err := cur.Decode(rec); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", r.coll.Name(), err)
		}
		out = append(out, rec)
	}
	return out, cur.Err()
}

func (r *mongoRepo[T]) UpdateByID(ctx context.Context, id string, p Patch) (T, error) {
	var zero T
	rec, err := r.FindByID(ctx, id)
	if err != nil {
		return zero, err
	}
	if err := rec.Apply(p); err != nil {
		return zero, err
	}
	rec.Touch(r.now().UTC())
	if _, err := r.coll.ReplaceOne(ctx, bson.M{"_id": id}, rec); err != nil {
		return zero, fmt.Errorf("failed to update %s: %w", r.coll.Name(), err)
	}
	return rec, nil
}

func (r *mongoRepo[T]) DeleteByID(ctx context.Context, id string) (T, error) {
	rec := r.newFn()
	if err := r.coll.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(rec); err != nil {
		var zero T
		if errors.Is(err, mongo.ErrNoDocuments) {
			return zero, ErrNotFound
		}
		return zero, fmt.Errorf("failed to delete from %s: %w", r.coll.Name(), err)
	}
	return rec, nil
}

func (r *mongoRepo[T]) DeleteMany(ctx context.Context, f Filter) (int, error) {
	filter, err := toBSON(f)
	if err != nil {
		return 0, err
	}
	res, err := r.coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", r.coll.Name(), err)
	}
	return int(res.DeletedCount), nil
}

// toBSON translates a Filter into a mongo query document.
func toBSON(f Filter) (bson.M, error) {
	if len(f.Conditions) == 0 {
		return bson.M{}, nil
	}

	clauses := make([]bson.M, 0, len(f.Conditions))
	for _, c := range f.Conditions {
		field := c.Field
		if field == "id" {
			field = "_id"
		}
		switch c.Op {
		case OpEq:
			clauses = append(clauses, bson.M{field: c.Value})
		case OpContains:
			needle, _ := c.Value.(string)
			clauses = append(clauses, bson.M{field: bson.M{"$regex": regexp.QuoteMeta(needle), "$options": "i"}})
		case OpIn:
			clauses = append(clauses, bson.M{field: bson.M{"$in": c.Values}})
		case OpBetween:
			rng := bson.M{"$gt": time.Time{}}
			if c.From != nil {
				rng["$gte"] = *c.From
			}
			if c.To != nil {
				rng["$lte"] = *c.To
			}
			clauses = append(clauses, bson.M{field: rng})
		default:
			return nil, fmt.Errorf("%w: unsupported operator %q", ErrInvalidField, c.Op)
		}
	}
	if len(clauses) == 1 {
		return clauses[0], nil
	}
	return bson.M{"$and": clauses}, nil
}
