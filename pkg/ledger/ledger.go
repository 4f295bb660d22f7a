// Package ledger records which source articles have been published so a
// run never publishes the same article twice.
//
// Keys are canonical source URLs. A URL is recorded only after its post was
// confirmed, so anything that failed part way is retried on the next run.
package ledger

import (
	"context"
	"fmt"
)

// Ledger is the dedup contract used by the pipeline.
type Ledger interface {
	Has(ctx context.Context, url string) (bool, error)
	Record(ctx context.Context, url string) error
}

// Store is a Ledger that can also enumerate and release its entries.
type Store interface {
	Ledger
	List(ctx context.Context) ([]string, error)
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend       string   `mapstructure:"backend" json:"backend" validate:"oneof=file redis postgres"`
	Path          string   `mapstructure:"path" json:"path,omitempty" validate:"required_if=Backend file"`
	RedisAddr     string   `mapstructure:"redis_addr" json:"redis_addr,omitempty" validate:"required_if=Backend redis"`
	RedisPassword string   `mapstructure:"redis_password" json:"-"`
	RedisDB       int      `mapstructure:"redis_db" json:"redis_db,omitempty"`
	RedisKey      string   `mapstructure:"redis_key" json:"redis_key,omitempty"`
	PostgresDSN   string   `mapstructure:"postgres_dsn" json:"-" validate:"required_if=Backend postgres"`
	Table         string   `mapstructure:"table" json:"table,omitempty"`
	SinkCommand   []string `mapstructure:"sink_command" json:"sink_command,omitempty"`
}

// DefaultConfig returns a file ledger in the working directory.
func DefaultConfig() Config {
	return Config{
		Backend:  "file",
		Path:     "posted_articles.json",
		RedisKey: "newsbridge:posted",
		Table:    "posted_articles",
	}
}

// Open creates the configured backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", "file":
		var opts []FileOption
		if len(cfg.SinkCommand) > 0 {
			opts = append(opts, WithSink(ExecSink{Command: cfg.SinkCommand}))
		}
		return OpenFile(cfg.Path, opts...)
	case "redis":
		return OpenRedis(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Key:      cfg.RedisKey,
		})
	case "postgres":
		return OpenPostgres(ctx, cfg.PostgresDSN, cfg.Table)
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Backend)
	}
}
