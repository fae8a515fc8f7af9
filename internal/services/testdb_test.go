package services

import (
	"context"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

var testMongoURI = ""

func init() {
	testMongoURI = os.Getenv("MONGO_URI_TEST")
	if testMongoURI == "" {
		testMongoURI = "mongodb://localhost:27017"
	}
}

// setupTestDB connects to the test MongoDB instance and drops the given
// collections for a clean state. Tests are skipped when no instance is
// reachable so the pure-logic suites still run everywhere.
func setupTestDB(t *testing.T, dbName string, collections ...string) *mongo.Database {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(testMongoURI))
	if err != nil {
		t.Skipf("Skipping: failed to connect to MongoDB at %s: %v", testMongoURI, err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		t.Skipf("Skipping: MongoDB not reachable at %s: %v", testMongoURI, err)
	}

	db := client.Database(dbName)
	for _, collection := range collections {
		_ = db.Collection(collection).Drop(context.Background())
	}
	t.Cleanup(func() {
		_ = client.Disconnect(context.Background())
	})
	return db
}
