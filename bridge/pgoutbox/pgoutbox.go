// Package pgoutbox stores outbound messages in PostgreSQL for relays that
// poll a database instead of the engine.
package pgoutbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/crossledger/appproxy/bridge"
	"github.com/crossledger/appproxy/core/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
	CREATE TABLE IF NOT EXISTS outbound_messages (
		operation_id   TEXT PRIMARY KEY,
		shards_key     BIGINT NOT NULL,
		caller_address TEXT NOT NULL,
		target_address TEXT NOT NULL,
		body           JSONB NOT NULL,
		acked          BOOLEAN NOT NULL DEFAULT FALSE,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

// Sink implements bridge.Sink on top of a pgx connection pool.
type Sink struct {
	pool *pgxpool.Pool
}

var _ bridge.Sink = (*Sink)(nil)

// New connects to databaseURL and makes sure the outbox table exists.
func New(ctx context.Context, databaseURL string) (*Sink, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create outbox table: %w", err)
	}
	return &Sink{pool: pool}, nil
}

// Close releases the pool.
func (s *Sink) Close() { s.pool.Close() }

// Publish implements bridge.Sink. Republishing an operation is a no-op.
func (s *Sink) Publish(ctx context.Context, msg *types.OutboundMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal outbound message: %w", err)
	}
	query := `
		INSERT INTO outbound_messages (operation_id, shards_key, caller_address, target_address, body)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (operation_id) DO NOTHING
	`
	tag, err := s.pool.Exec(ctx, query,
		msg.OperationID.Hex(),
		int64(msg.ShardsKey),
		msg.CallerAddress.Hex(),
		msg.TargetAddress,
		body,
	)
	if err != nil {
		return fmt.Errorf("failed to save outbound message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		log.Debug("Outbound message already stored", "op", msg.OperationID)
	}
	return nil
}

// Get returns the message stored for op.
func (s *Sink) Get(ctx context.Context, op common.Hash) (*types.OutboundMessage, error) {
	var body []byte
	err := s.pool.QueryRow(ctx, `SELECT body FROM outbound_messages WHERE operation_id = $1`, op.Hex()).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, bridge.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load outbound message: %w", err)
	}
	msg := new(types.OutboundMessage)
	if err := json.Unmarshal(body, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Pending returns unacknowledged messages, oldest first.
func (s *Sink) Pending(ctx context.Context, limit int) ([]*types.OutboundMessage, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT body FROM outbound_messages
		WHERE NOT acked
		ORDER BY created_at, operation_id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending messages: %w", err)
	}
	defer rows.Close()

	var out []*types.OutboundMessage
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		msg := new(types.OutboundMessage)
		if err := json.Unmarshal(body, msg); err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// Ack marks the message of op as delivered.
func (s *Sink) Ack(ctx context.Context, op common.Hash) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbound_messages SET acked = TRUE WHERE operation_id = $1`, op.Hex())
	return err
}
