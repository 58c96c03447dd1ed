package shared

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	redisad "realty_catalog/internal/adapters/redis"
	"realty_catalog/internal/domain"
	"realty_catalog/internal/storage/memory"
	mongorepo "realty_catalog/internal/storage/mongo"
	mysqlrepo "realty_catalog/internal/storage/mysql"
)

// OpenStore connects the configured catalog store and ensures its indexes.
// The returned func releases it.
func OpenStore(ctx context.Context, cfg Config) (domain.Store, func(), error) {
	if cfg.StoreDriver == "memory" {
		log.Warn().Msg("using the in-memory store; data is lost on exit")
		return memory.New(), func() {}, nil
	}
	client, err := mongorepo.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}
	repo := mongorepo.New(client.Database(cfg.MongoDatabase))
	if err := repo.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}
	log.Info().Str("database", cfg.MongoDatabase).Msg("mongo connection ok")
	return repo, func() { _ = client.Disconnect(context.Background()) }, nil
}

// OpenCache returns nil when REDIS_ADDR is empty or Redis is unreachable;
// reads then go straight to the store.
func OpenCache(ctx context.Context, cfg Config) (domain.Cache, func()) {
	if cfg.RedisAddr == "" {
		return nil, func() {}
	}
	c := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err := c.Ping(ctx); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, cache disabled")
		_ = c.Close()
		return nil, func() {}
	}
	return c, func() { _ = c.Close() }
}

// OpenJournal returns nil when MYSQL_DSN is empty.
func OpenJournal(ctx context.Context, cfg Config) (*mysqlrepo.Repo, func(), error) {
	if cfg.MySQLDSN == "" {
		return nil, func() {}, nil
	}
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("db.Ping: %w", err)
	}
	log.Info().Msg("journal database connection ok")
	return mysqlrepo.New(db), func() { _ = db.Close() }, nil
}
