package config

import (
	"log"
	"os"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
)

var loadOnce sync.Once

// Config func to get env value. The .env file is read once, variables
// already present in the environment take precedence.
func Config(key string) string {
	loadOnce.Do(func() {
		if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
			log.Printf("error loading .env file: %v", err)
		}
	})

	return os.Getenv(key)
}

// ConfigDefault returns the env value or def when it is unset.
func ConfigDefault(key string, def string) string {
	if value := Config(key); value != "" {
		return value
	}
	return def
}

// ConfigInt parses an integer env value, falling back to def.
func ConfigInt(key string, def int) int {
	value, err := strconv.Atoi(Config(key))
	if err != nil {
		return def
	}
	return value
}
