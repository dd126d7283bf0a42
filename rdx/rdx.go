package rdx

import (
	"context"
	"log"
	"os"

	"github.com/redis/go-redis/v9"
)

var Conn *redis.Client

func init() {
	addr := os.Getenv("REDIS_URL")
	if addr == "" {
		addr = "localhost:6379"
	}

	Conn = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	})

	if err := Conn.Ping(context.Background()).Err(); err != nil {
		log.Printf("[rdx] redis not reachable at startup: %v", err)
	}
}
