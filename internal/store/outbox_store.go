package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/micvant/timecheck/internal/model"
)

// GetOutbox returns the owner's pending mutations in log-append order.
func (s *SQLiteStore) GetOutbox(ctx context.Context, owner string) ([]model.OutboxRecord, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT seq, id, tbl, record_id, op, payload, owner, client_updated_at
		FROM outbox WHERE owner = ? ORDER BY seq`, owner)
	if err != nil {
		return nil, fmt.Errorf("querying outbox: %w", err)
	}
	defer rows.Close()

	var records []model.OutboxRecord
	for rows.Next() {
		var (
			rec      model.OutboxRecord
			table    string
			op       string
			payload  string
			clientAt string
		)
		err := rows.Scan(
			&rec.Seq, &rec.ID, &table, &rec.RecordID, &op,
			&payload, &rec.Owner, &clientAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning outbox row: %w", err)
		}

		rec.Table = model.Table(table)
		rec.Op = model.Op(op)
		rec.Payload = json.RawMessage(payload)
		if rec.ClientUpdatedAt, err = parseTime(clientAt); err != nil {
			return nil, err
		}

		records = append(records, rec)
	}

	return records, rows.Err()
}
