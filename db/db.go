package db

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	RoomsCollection        *mongo.Collection
	ReservationsCollection *mongo.Collection
	Client                 *mongo.Client
)

// Initialize MongoDB connection
func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found; using system environment")
	}

	uri := os.Getenv("MONGO_URL")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}

	var err error
	Client, err = mongo.Connect(context.TODO(), options.Client().ApplyURI(uri))
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}

	dbName := os.Getenv("MONGO_DB")
	if dbName == "" {
		dbName = "reservio"
	}

	RoomsCollection = Client.Database(dbName).Collection("rooms")
	ReservationsCollection = Client.Database(dbName).Collection("reservations")

	ensureIndexes()
}

// ensureIndexes declares the indexes the overlap query and the sweeps lean on.
// Declaration is idempotent; failures are logged, not fatal, so the service
// still starts against a restricted Mongo user.
func ensureIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := RoomsCollection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		log.Printf("rooms index: %v", err)
	}

	_, err = ReservationsCollection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "roomId", Value: 1}, {Key: "startsAt", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "endsAt", Value: 1}}},
	})
	if err != nil {
		log.Printf("reservations index: %v", err)
	}
}
