package database

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"messenger-gateway/config"

	"github.com/redis/go-redis/v9"
)

var Redis = make(map[int]*redis.Client)

// RedisConnect opens one client per database listed in REDIS_DB. The first
// one holds the identity cache, the second (when given) the socket.io
// adapter channels.
func RedisConnect(ctx context.Context) ([]int, error) {
	var dbs []int
	for _, db := range strings.Split(config.ConfigDefault("REDIS_DB", "0"), ",") {
		dbNumber, err := strconv.Atoi(strings.TrimSpace(db))
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB entry %q: %w", db, err)
		}

		client := redis.NewClient(&redis.Options{
			Addr: fmt.Sprintf(
				"%s:%s",
				config.ConfigDefault("REDIS_HOST", "localhost"),
				config.ConfigDefault("REDIS_PORT", "6379"),
			),
			Password: config.Config("REDIS_PASSWORD"),
			DB:       dbNumber,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return nil, fmt.Errorf("ping redis db %d: %w", dbNumber, err)
		}

		Redis[dbNumber] = client
		dbs = append(dbs, dbNumber)
	}

	log.Printf("Connections opened to Redis")
	return dbs, nil
}

func RedisClose() {
	for db, client := range Redis {
		if err := client.Close(); err != nil {
			log.Printf("close redis db %d: %v", db, err)
		}
		delete(Redis, db)
	}
}
