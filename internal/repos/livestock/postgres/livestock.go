package livestock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/groupbuy/internal/repos/livestock"
	"github.com/google/uuid"
)

var _ livestock.Catalog = (*livestockRepo)(nil)

type livestockRepo struct{ db *sql.DB }

func New(db *sql.DB) *livestockRepo {
	return &livestockRepo{db: db}
}

func (r *livestockRepo) GetAvailable(ctx context.Context, id uuid.UUID) (livestock.Livestock, error) {
	var l livestock.Livestock

	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, price, available, created_at
		FROM livestock
		WHERE id = $1 AND available
	`, id).Scan(&l.ID, &l.Name, &l.Price, &l.Available, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return livestock.Livestock{}, livestock.ErrLivestockNotFound
		}

		return livestock.Livestock{}, fmt.Errorf("get livestock: %w", err)
	}

	return l, nil
}

func (r *livestockRepo) ListAvailable(ctx context.Context) ([]livestock.Livestock, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, price, available, created_at
		FROM livestock
		WHERE available
		ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list livestock: %w", err)
	}
	defer rows.Close()

	var out []livestock.Livestock

	for rows.Next() {
		var l livestock.Livestock

		err = rows.Scan(&l.ID, &l.Name, &l.Price, &l.Available, &l.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan livestock: %w", err)
		}

		out = append(out, l)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate livestock: %w", err)
	}

	return out, nil
}
