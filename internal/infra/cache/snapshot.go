package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/edumarques81/stellar-queue/internal/domain/queue"
	"github.com/edumarques81/stellar-queue/internal/protocol"
)

// SaveQueueSnapshot stores the last server snapshot in its wire form,
// replacing the previous one.
func (dao *DAO) SaveQueueSnapshot(s queue.State) error {
	db, err := dao.db.conn()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(protocol.PayloadFromState(s))
	if err != nil {
		return fmt.Errorf("failed to encode queue snapshot: %w", err)
	}

	now := time.Now().Format(time.RFC3339)
	_, err = db.Exec(`
		INSERT INTO queue_snapshot (id, payload, saved_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at
	`, string(payload), now)
	return err
}

// LoadQueueSnapshot returns the stored snapshot. ok is false when nothing
// has been saved yet.
func (dao *DAO) LoadQueueSnapshot() (s queue.State, ok bool, err error) {
	db, err := dao.db.conn()
	if err != nil {
		return queue.State{}, false, err
	}

	var payload string
	err = db.QueryRow("SELECT payload FROM queue_snapshot WHERE id = 1").Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return queue.State{}, false, nil
	}
	if err != nil {
		return queue.State{}, false, err
	}

	var p protocol.StatePayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return queue.State{}, false, fmt.Errorf("failed to decode queue snapshot: %w", err)
	}
	return p.State(), true, nil
}
