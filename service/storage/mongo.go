package storage

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"ChatWave/tools/errs"
)

// MongoConfig holds the MongoDB connection settings.
type MongoConfig struct {
	URI         string
	Database    string
	MaxPoolSize int
}

// NewMongo connects and pings, returning the application database handle.
func NewMongo(ctx context.Context, cfg MongoConfig) (*mongo.Database, error) {
	if cfg.URI == "" {
		return nil, errs.New("mongo uri is required")
	}
	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(uint64(cfg.MaxPoolSize))
	}

	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	cli, err := mongo.Connect(cctx, opts)
	if err != nil {
		return nil, errs.WrapMsg(err, "mongo connect", "uri", cfg.URI)
	}
	if err := cli.Ping(cctx, readpref.Primary()); err != nil {
		return nil, errs.WrapMsg(err, "mongo ping", "uri", cfg.URI)
	}
	return cli.Database(cfg.Database), nil
}
