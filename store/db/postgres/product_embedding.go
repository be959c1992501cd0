package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/hrygo/stockwear/store"
)

func (d *DB) CreateProductEmbedding(ctx context.Context, create *store.ProductEmbedding) (*store.ProductEmbedding, error) {
	if len(create.Embedding) == 0 {
		return nil, errors.New("embedding is empty")
	}

	stmt := `
		INSERT INTO product_embedding (product_id, tenant_id, reference_image_id, embedding, source)
		VALUES (` + placeholders(5) + `)
		RETURNING id, created_ts, updated_ts`
	if err := d.db.QueryRowContext(ctx, stmt,
		create.ProductID,
		create.TenantID,
		create.ReferenceImageID,
		pgvector.NewVector(create.Embedding),
		create.Source,
	).Scan(&create.ID, &create.CreatedTs, &create.UpdatedTs); err != nil {
		return nil, errors.Wrap(err, "failed to create product embedding")
	}
	return create, nil
}

func (d *DB) ListProductEmbeddings(ctx context.Context, find *store.FindProductEmbedding) ([]*store.ProductEmbedding, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.ProductID; v != nil {
		where, args = append(where, "product_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.TenantID; v != nil {
		where, args = append(where, "tenant_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.ReferenceImageID; v != nil {
		where, args = append(where, "reference_image_id = "+placeholder(len(args)+1)), append(args, *v)
	}

	query := `
		SELECT id, product_id, tenant_id, reference_image_id, embedding, source, created_ts, updated_ts
		FROM product_embedding
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY id ASC`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list product embeddings")
	}
	defer rows.Close()

	list := []*store.ProductEmbedding{}
	for rows.Next() {
		var (
			embedding        store.ProductEmbedding
			vector           pgvector.Vector
			referenceImageID sql.NullInt32
			source           sql.NullString
		)
		if err := rows.Scan(
			&embedding.ID,
			&embedding.ProductID,
			&embedding.TenantID,
			&referenceImageID,
			&vector,
			&source,
			&embedding.CreatedTs,
			&embedding.UpdatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan product embedding")
		}
		embedding.Embedding = vector.Slice()
		embedding.ReferenceImageID = nullInt32(referenceImageID)
		embedding.Source = nullString(source)
		list = append(list, &embedding)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) DeleteProductEmbeddings(ctx context.Context, delete *store.DeleteProductEmbedding) (int64, error) {
	where, args := []string{}, []any{}
	if v := delete.ID; v != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := delete.ProductID; v != nil {
		where, args = append(where, "product_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := delete.ReferenceImageID; v != nil {
		where, args = append(where, "reference_image_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if len(where) == 0 {
		return 0, errors.New("delete product embedding requires a condition")
	}

	result, err := d.db.ExecContext(ctx, `DELETE FROM product_embedding WHERE `+strings.Join(where, " AND "), args...)
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete product embeddings")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rows affected")
	}
	return affected, nil
}

// ListCatalogRows reads the vector column as text so that the caller can
// validate its shape instead of failing the whole scan on one bad row.
func (d *DB) ListCatalogRows(ctx context.Context, tenantID int32) ([]*store.CatalogRow, error) {
	query := `
		SELECT
			p.id, p.code, p.name, p.description, p.image, p.supplier,
			e.id, e.embedding::text, e.source, e.reference_image_id,
			COALESCE(e.created_ts, p.created_ts), COALESCE(e.updated_ts, p.updated_ts)
		FROM product p
		LEFT JOIN product_embedding e ON e.product_id = p.id AND e.tenant_id = p.tenant_id
		WHERE p.tenant_id = ` + placeholder(1) + ` AND p.status = 'activo'
		ORDER BY p.id ASC, e.id ASC`
	rows, err := d.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list catalog rows")
	}
	defer rows.Close()

	list := []*store.CatalogRow{}
	for rows.Next() {
		var (
			row              store.CatalogRow
			embeddingID      sql.NullInt32
			rawEmbedding     sql.NullString
			source           sql.NullString
			referenceImageID sql.NullInt32
		)
		if err := rows.Scan(
			&row.ProductID,
			&row.Code,
			&row.Name,
			&row.Description,
			&row.Image,
			&row.Supplier,
			&embeddingID,
			&rawEmbedding,
			&source,
			&referenceImageID,
			&row.CreatedTs,
			&row.UpdatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan catalog row")
		}
		row.EmbeddingID = nullInt32(embeddingID)
		if rawEmbedding.Valid {
			row.RawEmbedding = []byte(rawEmbedding.String)
		}
		row.Source = nullString(source)
		row.ReferenceImageID = nullInt32(referenceImageID)
		list = append(list, &row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}
