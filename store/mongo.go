package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lvillar/signdoc"
)

// Mongo keeps one document per record in a collection.
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var _ Store = (*Mongo)(nil)

type mongoRecord struct {
	ID              string    `bson:"_id"`
	FullName        string    `bson:"full_name"`
	Email           string    `bson:"email"`
	EmailKey        string    `bson:"email_key"`
	Phone           string    `bson:"phone"`
	Role            string    `bson:"role,omitempty"`
	Notes           string    `bson:"notes,omitempty"`
	SignatureMethod string    `bson:"signature_method"`
	SignatureImage  []byte    `bson:"signature_image,omitempty"`
	Artifact        []byte    `bson:"artifact,omitempty"`
	Timestamp       time.Time `bson:"timestamp"`
	DisplayDate     string    `bson:"display_date"`
	Status          string    `bson:"status"`
}

// NewMongo uses coll of an already connected client.
func NewMongo(client *mongo.Client, coll *mongo.Collection) *Mongo {
	return &Mongo{client: client, coll: coll}
}

// OpenMongo connects to uri and indexes the collection by email.
// database and collection default to "signdoc" and "records".
func OpenMongo(ctx context.Context, uri, database, collection string) (*Mongo, error) {
	if database == "" {
		database = "signdoc"
	}
	if collection == "" {
		collection = "records"
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, backendErr("mongo", "connect", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, backendErr("mongo", "ping", err)
	}

	s := NewMongo(client, client.Database(database).Collection(collection))
	_, err = s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "email_key", Value: 1}, {Key: "timestamp", Value: 1}},
	})
	if err != nil {
		client.Disconnect(ctx)
		return nil, backendErr("mongo", "index", err)
	}
	return s, nil
}

func (s *Mongo) Append(ctx context.Context, r Record) (Record, error) {
	r = prepare(r)
	if _, err := s.coll.InsertOne(ctx, toMongo(r)); err != nil {
		return Record{}, backendErr("mongo", "append", err)
	}
	return r, nil
}

func (s *Mongo) All(ctx context.Context) ([]Record, error) {
	return s.find(ctx, "all", bson.M{})
}

func (s *Mongo) Get(ctx context.Context, id string) (Record, error) {
	var m mongoRecord
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Record{}, notFound(id)
	}
	if err != nil {
		return Record{}, backendErr("mongo", "get", err)
	}
	return m.record(), nil
}

func (s *Mongo) ByEmail(ctx context.Context, email string) ([]Record, error) {
	return s.find(ctx, "by email", bson.M{"email_key": EmailKey(email)})
}

func (s *Mongo) find(ctx context.Context, op string, filter bson.M) ([]Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, backendErr("mongo", op, err)
	}
	var docs []mongoRecord
	if err := cur.All(ctx, &docs); err != nil {
		return nil, backendErr("mongo", op, err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	out := make([]Record, len(docs))
	for i, d := range docs {
		out[i] = d.record()
	}
	return out, nil
}

func (s *Mongo) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return backendErr("mongo", "delete", err)
	}
	if res.DeletedCount == 0 {
		return notFound(id)
	}
	return nil
}

func (s *Mongo) Clear(ctx context.Context) error {
	if _, err := s.coll.DeleteMany(ctx, bson.M{}); err != nil {
		return backendErr("mongo", "clear", err)
	}
	return nil
}

func (s *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func toMongo(r Record) mongoRecord {
	return mongoRecord{
		ID:              r.ID,
		FullName:        r.FullName,
		Email:           r.Email,
		EmailKey:        EmailKey(r.Email),
		Phone:           r.Phone,
		Role:            r.Role,
		Notes:           r.Notes,
		SignatureMethod: string(r.SignatureMethod),
		SignatureImage:  r.SignatureImage,
		Artifact:        r.Artifact,
		Timestamp:       r.Timestamp,
		DisplayDate:     r.DisplayDate,
		Status:          string(r.Status),
	}
}

func (m mongoRecord) record() Record {
	return Record{
		ID:              m.ID,
		FullName:        m.FullName,
		Email:           m.Email,
		Phone:           m.Phone,
		Role:            m.Role,
		Notes:           m.Notes,
		SignatureMethod: signdoc.SignatureMethod(m.SignatureMethod),
		SignatureImage:  m.SignatureImage,
		Artifact:        m.Artifact,
		Timestamp:       m.Timestamp.UTC(),
		DisplayDate:     m.DisplayDate,
		Status:          Status(m.Status),
	}
}
