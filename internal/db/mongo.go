// Package db はMongoDBへの接続管理を提供します。
package db

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// connectTimeout はサーバー選択の待ち時間の上限です。
// これを超えた接続試行はハングせずエラーで打ち切られます。
const connectTimeout = 5 * time.Second

// Gateway はプロセスが所有する単一のMongoDB接続を管理します。
// 接続は最初の利用時に確立され、以降は再利用されます。
// 同時に複数のリクエストが初回接続を要求した場合も、
// 接続試行は一本に合流します。
type Gateway struct {
	uri      string
	database string

	mu     sync.Mutex
	client *mongo.Client
}

// NewGateway は未接続状態のGatewayを作成します。
func NewGateway(uri, database string) *Gateway {
	return &Gateway{
		uri:      uri,
		database: database,
	}
}

// Client は接続済みのクライアントを返します。
// 未接続の場合はここで接続を確立します。失敗した場合は
// キャッシュを残さないため、次の呼び出しで再試行されます。
func (g *Gateway) Client(ctx context.Context) (*mongo.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil {
		return g.client, nil
	}

	opts := options.Client().
		ApplyURI(g.uri).
		SetServerSelectionTimeout(connectTimeout)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create mongo client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to reach mongodb: %w", err)
	}

	log.Printf("Connected to MongoDB (database: %s)", g.database)
	g.client = client
	return g.client, nil
}

// Collection は指定コレクションのハンドルを返します。
func (g *Gateway) Collection(ctx context.Context, name string) (*mongo.Collection, error) {
	client, err := g.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Database(g.database).Collection(name), nil
}

// Close は確立済みの接続を切断します。未接続の場合は何もしません。
func (g *Gateway) Close(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client == nil {
		return nil
	}
	err := g.client.Disconnect(ctx)
	g.client = nil
	return err
}
