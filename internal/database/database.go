package database

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultDBName = "todoApp"

// Mongo bundles the connected client with the database the app works in.
type Mongo struct {
	Client *mongo.Client
	DB     *mongo.Database
}

// ConnectMongo dials mongoURI and pings it. When dbName is empty the database
// name is taken from the URI path, falling back to "todoApp".
func ConnectMongo(ctx context.Context, mongoURI, dbName string) (*Mongo, error) {
	// Atlas clusters can take a while to answer the first handshake
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(mongoURI)
	clientOptions.SetServerSelectionTimeout(10 * time.Second)

	slog.Info("connecting to MongoDB")
	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, err
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 10*time.Second)
	defer pingCancel()

	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	if dbName == "" {
		dbName = DatabaseNameFromURI(mongoURI)
	}

	slog.Info("connected to MongoDB", "database", dbName)
	return &Mongo{Client: client, DB: client.Database(dbName)}, nil
}

// DatabaseNameFromURI extracts the path segment of mongodb://host/name?opts.
func DatabaseNameFromURI(mongoURI string) string {
	parts := strings.Split(mongoURI, "/")
	if len(parts) > 3 {
		dbPart := strings.Split(parts[len(parts)-1], "?")[0]
		if dbPart != "" {
			return dbPart
		}
	}
	return defaultDBName
}

func (m *Mongo) Disconnect() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return m.Client.Disconnect(ctx)
}
