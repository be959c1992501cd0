package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/stockwear/store"
)

func (d *DB) CreateRecognitionQuery(ctx context.Context, create *store.RecognitionQuery) (*store.RecognitionQuery, error) {
	stmt := `
		INSERT INTO recognition_query (tenant_id, type, product_id, employee_id, confidence_tier, result)
		VALUES (` + placeholders(6) + `)
		RETURNING id, created_ts`
	if err := d.db.QueryRowContext(ctx, stmt,
		create.TenantID,
		create.Type,
		create.ProductID,
		create.EmployeeID,
		create.ConfidenceTier,
		create.Result,
	).Scan(&create.ID, &create.CreatedTs); err != nil {
		return nil, errors.Wrap(err, "failed to create recognition query")
	}
	return create, nil
}

func (d *DB) ListRecognitionQueries(ctx context.Context, find *store.FindRecognitionQuery) ([]*store.RecognitionQuery, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.TenantID; v != nil {
		where, args = append(where, "tenant_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Result; v != nil {
		where, args = append(where, "result = "+placeholder(len(args)+1)), append(args, *v)
	}

	query := `
		SELECT id, tenant_id, type, product_id, employee_id, confidence_tier, result, created_ts
		FROM recognition_query
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_ts DESC, id DESC`
	if find.Limit > 0 {
		query += ` LIMIT ` + placeholder(len(args)+1)
		args = append(args, find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list recognition queries")
	}
	defer rows.Close()

	list := []*store.RecognitionQuery{}
	for rows.Next() {
		var (
			q         store.RecognitionQuery
			productID sql.NullInt32
			employee  sql.NullString
		)
		if err := rows.Scan(
			&q.ID,
			&q.TenantID,
			&q.Type,
			&productID,
			&employee,
			&q.ConfidenceTier,
			&q.Result,
			&q.CreatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan recognition query")
		}
		q.ProductID = nullInt32(productID)
		q.EmployeeID = nullString(employee)
		list = append(list, &q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}
