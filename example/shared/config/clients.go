package config

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"

	"github.com/esaucy/esaucy-go/eventsourcing/kafkaengine"
	"github.com/esaucy/esaucy-go/eventsourcing/sqliteengine"
)

const redisPingTimeout = 5 * time.Second

// OpenSQLite opens the SQLite database at SQLitePath.
func (c Config) OpenSQLite() (*sql.DB, error) {
	return sqliteengine.Open(c.SQLitePath)
}

// RedisOptions returns the options for a redis client on RedisAddr.
func (c Config) RedisOptions() *redis.Options {
	return &redis.Options{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

// OpenRedis creates a redis client and pings it.
func (c Config) OpenRedis(ctx context.Context) (*redis.Client, error) {
	client := redis.NewClient(c.RedisOptions())

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// KafkaWriter returns a writer for KafkaTopic on KafkaBrokers.
func (c Config) KafkaWriter() *kafka.Writer {
	return kafkaengine.NewWriter(c.KafkaBrokers, c.KafkaTopic)
}
