package mongo

import (
	"context"
	engine "dbeval/benchmark/engines/abstract"
	"dbeval/generator"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Config struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

const (
	codeValidationFailed = 121
	codeDuplicateKey     = 11000
)

type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

// Open connects to the deployment and checks the connection.
func Open(ctx context.Context, cfg Config) (*Mongo, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongodb connection string is not set")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, errors.Wrap(err, "opening mongodb connection")
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, errors.Wrap(err, "connecting to mongodb")
	}

	zlog.Info().Str("backend", "mongodb").Str("database", cfg.Database).Msg("connected")
	return &Mongo{client: client, db: client.Database(cfg.Database)}, nil
}

func (m *Mongo) Name() string {
	return "mongodb"
}

func (m *Mongo) Capabilities() engine.Capabilities {
	return engine.Capabilities{
		SchemaMigrationRequired: false,
		NestedStructures:        engine.Native,
		Validation:              engine.Native,
		References:              engine.Emulated,
		CascadeDelete:           engine.Emulated,
		Transactions:            engine.Native,
	}
}

// Provision creates the collection with a $jsonSchema validator for
// constrained schema objects, then its indexes.
func (m *Mongo) Provision(ctx context.Context, schema string) error {
	s, err := engine.Lookup(schema)
	if err != nil {
		return &engine.ProvisionError{Schema: schema, Cause: err}
	}

	m.Drop(ctx, schema)
	opts := options.CreateCollection()
	if len(s.Rules) > 0 {
		opts.SetValidator(validator(s)).SetValidationLevel("strict").SetValidationAction("error")
	}
	if err := m.db.CreateCollection(ctx, s.Name, opts); err != nil {
		return &engine.ProvisionError{Schema: schema, Cause: err}
	}

	models := []mongo.IndexModel{}
	for _, rule := range s.Rules {
		if rule.Unique && keyField(s, rule.Field) != "_id" {
			models = append(models, mongo.IndexModel{
				Keys:    bson.D{{Key: rule.Field, Value: 1}},
				Options: options.Index().SetUnique(true),
			})
		}
	}
	for _, field := range s.Indexes {
		models = append(models, mongo.IndexModel{Keys: bson.D{{Key: field, Value: 1}}})
	}
	if len(models) > 0 {
		if _, err := m.db.Collection(s.Name).Indexes().CreateMany(ctx, models); err != nil {
			return &engine.ProvisionError{Schema: schema, Cause: err}
		}
	}
	zlog.Debug().Str("backend", m.Name()).Str("schema", schema).Int("indexes", len(models)).Msg("provisioned")
	return nil
}

func (m *Mongo) Drop(ctx context.Context, schema string) {
	if err := m.db.Collection(schema).Drop(ctx); err != nil {
		zlog.Debug().Err(err).Str("schema", schema).Msg("ignored")
	}
}

// checkReferences emulates foreign keys: every referenced parent must exist.
func (m *Mongo) checkReferences(ctx context.Context, s engine.Schema, doc bson.M) error {
	for _, ref := range s.References {
		value := doc[ref.Field]
		parent, err := engine.Lookup(ref.Parent)
		if err != nil {
			return err
		}
		n, err := m.db.Collection(ref.Parent).CountDocuments(ctx,
			bson.D{{Key: keyField(parent, ref.ParentField), Value: value}},
			options.Count().SetLimit(1))
		if err != nil {
			return err
		}
		if n == 0 {
			return engine.Reject("%s: %s %v references a missing %s record", s.Name, ref.Field, value, ref.Parent)
		}
	}
	return nil
}

func (m *Mongo) InsertMany(ctx context.Context, schema string, records []generator.Record) (int, error) {
	s, err := engine.Lookup(schema)
	if err != nil {
		return 0, err
	}
	docs := make([]any, 0, len(records))
	for _, r := range records {
		doc := toDocument(s, r)
		if err := m.checkReferences(ctx, s, doc); err != nil {
			return 0, err
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return 0, nil
	}
	res, err := m.db.Collection(schema).InsertMany(ctx, docs)
	if err != nil {
		return 0, err
	}
	return len(res.InsertedIDs), nil
}

func (m *Mongo) InsertOne(ctx context.Context, schema string, record generator.Record) engine.Outcome {
	return engine.Classify(m.insert(ctx, schema, record), isRejection)
}

func (m *Mongo) insert(ctx context.Context, schema string, record generator.Record) error {
	s, err := engine.Lookup(schema)
	if err != nil {
		return err
	}
	doc := toDocument(s, record)
	if err := m.checkReferences(ctx, s, doc); err != nil {
		return err
	}
	_, err = m.db.Collection(schema).InsertOne(ctx, doc)
	return err
}

func (m *Mongo) Find(ctx context.Context, schema string, filter engine.Filter, limit int) (int, error) {
	s, err := engine.Lookup(schema)
	if err != nil {
		return 0, err
	}
	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := m.db.Collection(schema).Find(ctx, toFilter(s, filter), opts)
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)
	n := 0
	for cursor.Next(ctx) {
		n++
	}
	return n, cursor.Err()
}

func (m *Mongo) Count(ctx context.Context, schema string, filter engine.Filter) (int64, error) {
	s, err := engine.Lookup(schema)
	if err != nil {
		return 0, err
	}
	return m.db.Collection(schema).CountDocuments(ctx, toFilter(s, filter))
}

func (m *Mongo) Update(ctx context.Context, schema string, filter engine.Filter, mutation engine.Mutation) (int64, error) {
	s, err := engine.Lookup(schema)
	if err != nil {
		return 0, err
	}
	res, err := m.db.Collection(schema).UpdateMany(ctx, toFilter(s, filter), toUpdate(mutation))
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

// Delete removes the matching documents after cascading to the dependents
// declared in the catalog.
func (m *Mongo) Delete(ctx context.Context, schema string, filter engine.Filter) (int64, error) {
	s, err := engine.Lookup(schema)
	if err != nil {
		return 0, err
	}
	coll := m.db.Collection(schema)
	bfilter := toFilter(s, filter)

	for _, dep := range engine.Dependents(schema) {
		field := keyField(s, dep.ParentField)
		values, err := coll.Distinct(ctx, field, bfilter)
		if err != nil {
			return 0, err
		}
		if len(values) == 0 {
			continue
		}
		childFilter := engine.Where(engine.AnyOf(dep.Field, values...))
		if !dep.Cascade {
			n, err := m.Count(ctx, dep.Schema, childFilter)
			if err != nil {
				return 0, err
			}
			if n > 0 {
				return 0, engine.Reject("%s: records are still referenced by %s", schema, dep.Schema)
			}
			continue
		}
		if _, err := m.Delete(ctx, dep.Schema, childFilter); err != nil {
			return 0, err
		}
	}

	res, err := coll.DeleteMany(ctx, bfilter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// RunTransaction runs fn in a multi-document transaction. The transaction is
// not retried on transient errors.
func (m *Mongo) RunTransaction(ctx context.Context, fn engine.TxFunc) engine.Outcome {
	sess, err := m.client.StartSession()
	if err != nil {
		return engine.Fatal(err)
	}
	defer sess.EndSession(ctx)

	err = mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
		if err := sess.StartTransaction(); err != nil {
			return err
		}
		if err := fn(sc, &mongoTx{m: m}); err != nil {
			if abortErr := sess.AbortTransaction(sc); abortErr != nil {
				zlog.Warn().Err(abortErr).Str("backend", m.Name()).Msg("abort failed")
			}
			return err
		}
		return sess.CommitTransaction(sc)
	})
	return engine.Classify(err, isRejection)
}

// Stats reports dataSize plus indexSize of the database.
func (m *Mongo) Stats(ctx context.Context) (engine.Stats, error) {
	var res bson.M
	if err := m.db.RunCommand(ctx, bson.D{{Key: "dbStats", Value: 1}}).Decode(&res); err != nil {
		return engine.Stats{}, err
	}
	return engine.Stats{StorageBytes: generator.ToInt(res["dataSize"]) + generator.ToInt(res["indexSize"])}, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

type mongoTx struct {
	m *Mongo
}

// FindOne reads inside the transaction snapshot; a concurrent write to the
// returned document aborts one of the transactions with a write conflict.
func (t *mongoTx) FindOne(ctx context.Context, schema string, filter engine.Filter) (generator.Record, bool, error) {
	s, err := engine.Lookup(schema)
	if err != nil {
		return generator.Record{}, false, err
	}
	var doc bson.M
	err = t.m.db.Collection(schema).FindOne(ctx, toFilter(s, filter)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return generator.Record{}, false, nil
	}
	if err != nil {
		return generator.Record{}, false, err
	}
	return fromDocument(s, doc), true, nil
}

func (t *mongoTx) Insert(ctx context.Context, schema string, record generator.Record) error {
	return t.m.insert(ctx, schema, record)
}

func (t *mongoTx) Update(ctx context.Context, schema string, filter engine.Filter, mutation engine.Mutation) (int64, error) {
	return t.m.Update(ctx, schema, filter, mutation)
}

// isRejection recognizes validator failures and duplicate keys.
func isRejection(err error) bool {
	if mongo.IsDuplicateKeyError(err) {
		return true
	}
	var se mongo.ServerError
	if errors.As(err, &se) {
		return se.HasErrorCode(codeValidationFailed) || se.HasErrorCode(codeDuplicateKey)
	}
	return false
}

var _ engine.Engine = (*Mongo)(nil)
