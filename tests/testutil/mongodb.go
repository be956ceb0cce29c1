package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	mongoUser     = "admin"
	mongoPassword = "admin123"
	mongoPings    = 5
)

var mongoContainer = newSharedContainer(testcontainers.ContainerRequest{
	Image:        "mongo:8",
	ExposedPorts: []string{"27017/tcp"},
	Env: map[string]string{
		"MONGO_INITDB_ROOT_USERNAME": mongoUser,
		"MONGO_INITDB_ROOT_PASSWORD": mongoPassword,
	},
	WaitingFor: wait.ForLog("Waiting for connections").WithStartupTimeout(containerStartTimeout),
}, "27017")

// SetupTestMongoDB returns a database private to t inside the shared MongoDB
// container. It is dropped when the test ends.
func SetupTestMongoDB(t *testing.T) *mongo.Database {
	t.Helper()

	uri := "mongodb://" + mongoUser + ":" + mongoPassword + "@" + requireContainer(t, mongoContainer)
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("connect mongodb: %v", err)
	}

	// the server may accept connections shortly after logging readiness
	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = client.Ping(ctx, nil)
		cancel()
		if err == nil {
			break
		}
		if attempt == mongoPings {
			t.Fatalf("ping mongodb after %d attempts: %v", attempt, err)
		}
		time.Sleep(500 * time.Millisecond)
	}

	db := client.Database(testDatabaseName(t.Name()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return db
}

// testDatabaseName derives a valid, unique database name from a test name.
// MongoDB caps names at 63 bytes.
func testDatabaseName(testName string) string {
	sum := sha256.Sum256([]byte(testName))
	readable := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, testName)
	if len(readable) > 24 {
		readable = readable[:24]
	}
	return "pb_" + readable + "_" + hex.EncodeToString(sum[:6])
}
