package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/stockwear/store"
)

func (d *DB) CreateVisualFeedback(ctx context.Context, create *store.VisualFeedback) (*store.VisualFeedback, error) {
	metadata := create.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataBytes, err := json.Marshal(metadata)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal feedback metadata")
	}
	var vector any
	if len(create.Embedding) > 0 {
		encoded, err := encodeVector(create.Embedding)
		if err != nil {
			return nil, err
		}
		vector = encoded
	}

	stmt := `
		INSERT INTO visual_recognition_feedback
			(tenant_id, suggested_product_id, actual_product_id, similarity, threshold, was_correct, embedding, employee_id, metadata)
		VALUES (` + placeholders(9) + `)
		RETURNING id, created_ts`
	if err := d.db.QueryRowContext(ctx, stmt,
		create.TenantID,
		create.SuggestedProductID,
		create.ActualProductID,
		create.Similarity,
		create.Threshold,
		create.WasCorrect,
		vector,
		create.EmployeeID,
		string(metadataBytes),
	).Scan(&create.ID, &create.CreatedTs); err != nil {
		return nil, errors.Wrap(err, "failed to create visual feedback")
	}
	return create, nil
}

func (d *DB) ListVisualFeedback(ctx context.Context, find *store.FindVisualFeedback) ([]*store.VisualFeedback, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.TenantID; v != nil {
		where, args = append(where, "tenant_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.WasCorrect; v != nil {
		where, args = append(where, "was_correct = "+placeholder(len(args)+1)), append(args, *v)
	}

	query := `
		SELECT id, tenant_id, suggested_product_id, actual_product_id, similarity, threshold,
			was_correct, embedding, employee_id, metadata, created_ts
		FROM visual_recognition_feedback
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY id ASC`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list visual feedback")
	}
	defer rows.Close()

	list := []*store.VisualFeedback{}
	for rows.Next() {
		var (
			feedback  store.VisualFeedback
			suggested sql.NullInt32
			actual    sql.NullInt32
			embedding sql.NullString
			employee  sql.NullString
			metadata  string
		)
		if err := rows.Scan(
			&feedback.ID,
			&feedback.TenantID,
			&suggested,
			&actual,
			&feedback.Similarity,
			&feedback.Threshold,
			&feedback.WasCorrect,
			&embedding,
			&employee,
			&metadata,
			&feedback.CreatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan visual feedback")
		}
		feedback.SuggestedProductID = nullInt32(suggested)
		feedback.ActualProductID = nullInt32(actual)
		feedback.EmployeeID = nullString(employee)
		if embedding.Valid && embedding.String != "" {
			vector, err := decodeVector(embedding.String)
			if err != nil {
				return nil, errors.Wrapf(err, "visual feedback %d", feedback.ID)
			}
			feedback.Embedding = vector
		}
		if metadata != "" {
			if err := json.Unmarshal([]byte(metadata), &feedback.Metadata); err != nil {
				return nil, errors.Wrap(err, "failed to unmarshal feedback metadata")
			}
		}
		list = append(list, &feedback)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}
