package sqlite

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/stockwear/store"
)

func (d *DB) CreateReferenceImage(ctx context.Context, create *store.ReferenceImage) (*store.ReferenceImage, error) {
	stmt := `
		INSERT INTO product_reference_image (product_id, tenant_id, path, filename, mime_type, size)
		VALUES (` + placeholders(6) + `)
		RETURNING id, created_ts, updated_ts`
	if err := d.db.QueryRowContext(ctx, stmt,
		create.ProductID,
		create.TenantID,
		create.Path,
		create.Filename,
		create.MimeType,
		create.Size,
	).Scan(&create.ID, &create.CreatedTs, &create.UpdatedTs); err != nil {
		return nil, errors.Wrap(err, "failed to create reference image")
	}
	return create, nil
}

func (d *DB) ListReferenceImages(ctx context.Context, find *store.FindReferenceImage) ([]*store.ReferenceImage, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "r.id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.ProductID; v != nil {
		where, args = append(where, "r.product_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.TenantID; v != nil {
		where, args = append(where, "r.tenant_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if find.WithoutEmbedding {
		where = append(where, "NOT EXISTS (SELECT 1 FROM product_embedding e WHERE e.reference_image_id = r.id)")
	}

	query := `
		SELECT r.id, r.product_id, r.tenant_id, r.path, r.filename, r.mime_type, r.size, r.created_ts, r.updated_ts
		FROM product_reference_image r
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY r.id ASC`
	if find.Limit > 0 {
		query += ` LIMIT ` + placeholder(len(args)+1)
		args = append(args, find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list reference images")
	}
	defer rows.Close()

	list := []*store.ReferenceImage{}
	for rows.Next() {
		var image store.ReferenceImage
		if err := rows.Scan(
			&image.ID,
			&image.ProductID,
			&image.TenantID,
			&image.Path,
			&image.Filename,
			&image.MimeType,
			&image.Size,
			&image.CreatedTs,
			&image.UpdatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan reference image")
		}
		list = append(list, &image)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) DeleteReferenceImage(ctx context.Context, delete *store.DeleteReferenceImage) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM product_reference_image WHERE id = `+placeholder(1), delete.ID); err != nil {
		return errors.Wrap(err, "failed to delete reference image")
	}
	return nil
}
