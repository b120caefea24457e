// Package mongodb connects to MongoDB and hands out a database handle.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

type Client struct {
	client   *mongo.Client
	database string
	timeout  time.Duration
	logger   *zap.Logger
}

type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.Database == "" {
		return nil, fmt.Errorf("mongodb database name is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("could not connect to mongodb: %w", err)
	}

	c := &Client{
		client:   client,
		database: cfg.Database,
		timeout:  timeout,
		logger:   logger,
	}

	if err := c.Ping(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	logger.Info("MongoDB connected",
		zap.String("database", cfg.Database),
		zap.Duration("timeout", timeout),
	)

	return c, nil
}

func (c *Client) Database() *mongo.Database {
	return c.client.Database(c.database)
}

func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("could not ping mongodb: %w", err)
	}
	return nil
}

func (c *Client) Close(ctx context.Context) error {
	if err := c.client.Disconnect(ctx); err != nil {
		c.logger.Error("could not close mongodb client", zap.Error(err))
		return fmt.Errorf("could not close mongodb connection: %w", err)
	}
	c.logger.Info("MongoDB connection closed")
	return nil
}
