package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	accountsCollection   = "accounts"
	groupsCollection     = "mood_groups"
	activitiesCollection = "mood_activities"
	entriesCollection    = "mood_entries"
)

type Mongo struct {
	client     *mongo.Client
	db         *mongo.Database
	accounts   *mongoCollection[Account]
	groups     *mongoCollection[Group]
	activities *mongoCollection[Activity]
	entries    *mongoCollection[MoodEntry]
}

func OpenMongo(ctx context.Context, url, database string) (*Mongo, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(url))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(database)
	return &Mongo{
		client:     client,
		db:         db,
		accounts:   &mongoCollection[Account]{coll: db.Collection(accountsCollection), ownerField: "_id"},
		groups:     &mongoCollection[Group]{coll: db.Collection(groupsCollection), ownerField: "accountId"},
		activities: &mongoCollection[Activity]{coll: db.Collection(activitiesCollection), ownerField: "accountId"},
		entries:    &mongoCollection[MoodEntry]{coll: db.Collection(entriesCollection), ownerField: "accountId"},
	}, nil
}

func (m *Mongo) Accounts() Collection[Account]      { return m.accounts }
func (m *Mongo) Groups() Collection[Group]          { return m.groups }
func (m *Mongo) Activities() Collection[Activity]   { return m.activities }
func (m *Mongo) MoodEntries() Collection[MoodEntry] { return m.entries }

func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// EnsureIndexes creates the lookup indexes and the unique keys the engine
// relies on.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		accountsCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		groupsCollection: {
			{Keys: bson.D{{Key: "accountId", Value: 1}, {Key: "order", Value: 1}}},
		},
		activitiesCollection: {
			{Keys: bson.D{{Key: "accountId", Value: 1}, {Key: "groupId", Value: 1}}},
		},
		entriesCollection: {
			{
				Keys:    bson.D{{Key: "accountId", Value: 1}, {Key: "date", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("unique_entry_per_day"),
			},
			{Keys: bson.D{{Key: "accountId", Value: 1}, {Key: "activities", Value: 1}}},
		},
	}
	for name, models := range indexes {
		if _, err := m.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}

type mongoCollection[T Record] struct {
	coll       *mongo.Collection
	ownerField string
}

func (c *mongoCollection[T]) Find(ctx context.Context, filter Filter) ([]T, error) {
	cursor, err := c.coll.Find(ctx, c.filter(filter), options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", c.coll.Name(), err)
	}
	out := make([]T, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.coll.Name(), err)
	}
	return out, nil
}

func (c *mongoCollection[T]) InsertMany(ctx context.Context, docs []T) error {
	if len(docs) == 0 {
		return nil
	}
	items := make([]any, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc)
	}
	if _, err := c.coll.InsertMany(ctx, items); err != nil {
		return c.wrapWriteError("insert", err)
	}
	return nil
}

func (c *mongoCollection[T]) ReplaceMany(ctx context.Context, docs []T) (int64, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	models := make([]mongo.WriteModel, 0, len(docs))
	for _, doc := range docs {
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(c.ownedBy(doc.Keys())).
			SetReplacement(doc))
	}
	result, err := c.coll.BulkWrite(ctx, models)
	if err != nil {
		return 0, c.wrapWriteError("replace", err)
	}
	return result.MatchedCount, nil
}

func (c *mongoCollection[T]) DeleteMany(ctx context.Context, filter Filter) (int64, error) {
	if filter.IsZero() {
		return 0, ErrUnscopedDelete
	}
	result, err := c.coll.DeleteMany(ctx, c.filter(filter))
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", c.coll.Name(), err)
	}
	return result.DeletedCount, nil
}

func (c *mongoCollection[T]) ownedBy(keys Keys) bson.D {
	if c.ownerField == "_id" {
		return bson.D{{Key: "_id", Value: keys.ID}}
	}
	return bson.D{{Key: "_id", Value: keys.ID}, {Key: c.ownerField, Value: keys.AccountID}}
}

// filter translates f into a query. Accounts are owned by their own _id, so
// clauses are joined with $and to keep both _id conditions.
func (c *mongoCollection[T]) filter(f Filter) bson.D {
	var clauses bson.A
	if f.IDs != nil {
		clauses = append(clauses, bson.D{{Key: "_id", Value: bson.M{"$in": f.IDs}}})
	}
	if f.AccountID != "" {
		clauses = append(clauses, bson.D{{Key: c.ownerField, Value: f.AccountID}})
	}
	if f.GroupIDs != nil {
		clauses = append(clauses, bson.D{{Key: "groupId", Value: bson.M{"$in": f.GroupIDs}}})
	}
	if f.ActivityIDs != nil {
		clauses = append(clauses, bson.D{{Key: "activities", Value: bson.M{"$in": f.ActivityIDs}}})
	}
	if f.Email != "" {
		clauses = append(clauses, bson.D{{Key: "email", Value: f.Email}})
	}
	switch len(clauses) {
	case 0:
		return bson.D{}
	case 1:
		return clauses[0].(bson.D)
	default:
		return bson.D{{Key: "$and", Value: clauses}}
	}
}

func (c *mongoCollection[T]) wrapWriteError(op string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s %s: %w: %v", op, c.coll.Name(), ErrDuplicateKey, err)
	}
	return fmt.Errorf("%s %s: %w", op, c.coll.Name(), err)
}
