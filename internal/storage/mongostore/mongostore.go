// Package mongostore implements the expense gateway on a MongoDB collection.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"expensetracker/internal/core"
	"expensetracker/internal/storage"
)

// expenseDocument is the stored shape of an expense. Category has no
// omitempty so a missing category is persisted as an explicit null.
type expenseDocument struct {
	ID       primitive.ObjectID `bson:"_id,omitempty"`
	Title    string             `bson:"title"`
	Amount   float64            `bson:"amount"`
	Date     time.Time          `bson:"date"`
	Category *string            `bson:"category"`
}

type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var _ storage.Gateway = (*Store)(nil)

// Connect dials MongoDB once, checks the connection and ensures the date index.
// The returned store owns the client and disconnects it on Close.
func Connect(ctx context.Context, uri, database, collection string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	s := New(client.Database(database).Collection(collection))
	s.client = client

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	slog.InfoContext(ctx, "Connected to MongoDB",
		"database", database,
		"collection", collection)
	return s, nil
}

// New wraps an existing collection. The caller keeps ownership of the client.
func New(coll *mongo.Collection) *Store {
	return &Store{coll: coll}
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "date", Value: -1}, {Key: "_id", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create date index: %w", err)
	}
	return nil
}

func (s *Store) ListAll(ctx context.Context) ([]core.Expense, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, core.NewStoreError("list", err)
	}

	var docs []expenseDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, core.NewStoreError("list", err)
	}

	out := make([]core.Expense, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toExpense())
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, id string) (core.Expense, error) {
	oid, err := core.ParseID(id)
	if err != nil {
		return core.Expense{}, err
	}

	var doc expenseDocument
	if err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc); err != nil {
		return core.Expense{}, core.NewStoreError("get", notFound(err))
	}
	return doc.toExpense(), nil
}

func (s *Store) Create(ctx context.Context, p core.Payload) (core.Expense, error) {
	e, err := p.NewExpense("")
	if err != nil {
		return core.Expense{}, err
	}

	doc := fromExpense(e)
	res, err := s.coll.InsertOne(ctx, doc)
	if err != nil {
		return core.Expense{}, core.NewStoreError("insert", err)
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return core.Expense{}, core.NewStoreError("insert", fmt.Errorf("unexpected inserted id type %T", res.InsertedID))
	}
	doc.ID = oid
	return doc.toExpense(), nil
}

// UpdatePartial applies $set on the matching _id and returns the post-image in
// one round trip. A match whose values do not change still returns the document,
// so NotFound only means the id does not exist.
func (s *Store) UpdatePartial(ctx context.Context, id string, p core.Payload) (core.Expense, error) {
	oid, err := core.ParseID(id)
	if err != nil {
		return core.Expense{}, err
	}
	if p.IsEmpty() {
		return core.Expense{}, core.ErrEmptyPayload
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.D{{Key: "$set", Value: updateDocument(p)}}

	var doc expenseDocument
	err = s.coll.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: oid}}, update, opts).Decode(&doc)
	if err != nil {
		return core.Expense{}, core.NewStoreError("update", notFound(err))
	}
	return doc.toExpense(), nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	oid, err := core.ParseID(id)
	if err != nil {
		return err
	}

	res, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return core.NewStoreError("delete", err)
	}
	if res.DeletedCount == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.coll.Database().Client().Ping(ctx, readpref.Primary())
}

// Close disconnects the client if this store created it.
func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// updateDocument builds the $set body for the fields present in p.
func updateDocument(p core.Payload) bson.D {
	set := bson.D{}
	if p.Title != nil {
		set = append(set, bson.E{Key: "title", Value: *p.Title})
	}
	if p.Amount != nil {
		set = append(set, bson.E{Key: "amount", Value: *p.Amount})
	}
	if p.Date != nil {
		set = append(set, bson.E{Key: "date", Value: *p.Date})
	}
	if p.CategorySet {
		if p.Category == nil {
			set = append(set, bson.E{Key: "category", Value: nil})
		} else {
			set = append(set, bson.E{Key: "category", Value: *p.Category})
		}
	}
	return set
}

func fromExpense(e core.Expense) expenseDocument {
	return expenseDocument{
		Title:    e.Title,
		Amount:   e.Amount,
		Date:     e.Date,
		Category: e.Category,
	}
}

func (d expenseDocument) toExpense() core.Expense {
	return core.Expense{
		ID:       d.ID.Hex(),
		Title:    d.Title,
		Amount:   d.Amount,
		Date:     d.Date.UTC(),
		Category: d.Category,
	}
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.ErrNotFound
	}
	return err
}
