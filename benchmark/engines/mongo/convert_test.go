package mongo

import (
	"errors"
	"testing"
	"time"

	engine "dbeval/benchmark/engines/abstract"
	"dbeval/generator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestToFilter(t *testing.T) {
	s, err := engine.Lookup(engine.PerformanceTest)
	require.NoError(t, err)

	assert.Equal(t, bson.D{}, toFilter(s, engine.All))
	assert.Equal(t, bson.D{{Key: "category", Value: "books"}}, toFilter(s, engine.Where(engine.Eq("category", "books"))))
	assert.Equal(t, bson.D{{Key: "_id", Value: "perf_000001"}}, toFilter(s, engine.Where(engine.Eq("id", "perf_000001"))))

	f := toFilter(s, engine.Where(engine.Between("price", 100, 200), engine.Contains("name", "Product 1.")))
	require.Len(t, f, 1)
	assert.Equal(t, "$and", f[0].Key)
	conds := f[0].Value.(bson.A)
	require.Len(t, conds, 2)
	assert.Equal(t, bson.D{{Key: "price", Value: bson.M{"$gte": 100, "$lte": 200}}}, conds[0])
	assert.Equal(t, bson.D{{Key: "name", Value: primitive.Regex{Pattern: `Product 1\.`, Options: "i"}}}, conds[1])
}

func TestCondition(t *testing.T) {
	assert.Equal(t, bson.M{"$in": bson.A{"a", "b"}}, condition(engine.AnyOf("tags", "a", "b")))
	assert.Equal(t, bson.M{"$exists": true, "$ne": nil}, condition(engine.Exists("sizes")))
	assert.Equal(t, bson.M{"$lt": 5}, condition(engine.Lt("stock", 5)))
}

func TestToDocumentAndBack(t *testing.T) {
	customers, _ := engine.Lookup(engine.Customers)
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	c := generator.NewCustomer("CUST_000001", "Ann", "ann@example.com", "+15551234567", now)

	doc := toDocument(customers, c)
	assert.Equal(t, "CUST_000001", doc["_id"])
	assert.Equal(t, "CUST_000001", doc["customer_id"])

	decoded := bson.M{
		"_id":        "CUST_000001",
		"created_at": primitive.NewDateTimeFromTime(now),
		"address":    bson.M{"city": "Springfield"},
		"stock":      int32(4),
		"tags":       bson.A{"x"},
	}
	r := fromDocument(customers, decoded)
	assert.Equal(t, "CUST_000001", r.ID)
	assert.Equal(t, now, r.Time("created_at"))
	assert.Equal(t, "Springfield", r.String("address.city"))
	assert.Equal(t, 4, r.Fields["stock"])
	assert.Equal(t, []any{"x"}, r.Fields["tags"])
	_, hasID := r.Fields["_id"]
	assert.False(t, hasID)
}

func TestToUpdate(t *testing.T) {
	u := toUpdate(engine.Mutation{Inc: map[string]any{"price": 10}, Set: map[string]any{"status": "x"}})
	assert.Equal(t, bson.M{"$inc": bson.M{"price": 10}, "$set": bson.M{"status": "x"}}, u)
	assert.Empty(t, toUpdate(engine.Mutation{}))
}

func TestValidator(t *testing.T) {
	customers, _ := engine.Lookup(engine.Customers)
	root := validator(customers)["$jsonSchema"].(bson.M)
	assert.Equal(t, "object", root["bsonType"])
	assert.Equal(t, bson.A{"customer_id", "email", "name"}, root["required"])

	props := root["properties"].(bson.M)
	assert.Equal(t, `^CUST_[0-9]{6}$`, props["customer_id"].(bson.M)["pattern"])
	assert.Equal(t, bson.A{"active", "inactive", "suspended"}, props["status"].(bson.M)["enum"])

	address := props["address"].(bson.M)
	assert.Equal(t, "object", address["bsonType"])
	street := address["properties"].(bson.M)["street"].(bson.M)
	assert.Equal(t, 5, street["minLength"])

	inventory, _ := engine.Lookup(engine.Inventory)
	stock := validator(inventory)["$jsonSchema"].(bson.M)["properties"].(bson.M)["stock_quantity"].(bson.M)
	assert.Equal(t, bson.A{"int", "long"}, stock["bsonType"])
	assert.Equal(t, 0.0, stock["minimum"])
}

func TestIsRejection(t *testing.T) {
	assert.True(t, isRejection(writeException(11000)))
	assert.True(t, isRejection(writeException(121)))
	assert.False(t, isRejection(writeException(50)))
	assert.False(t, isRejection(errors.New("server selection timeout")))
}

func writeException(code int) error {
	return mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: code, Message: "write failed"}}}
}
