package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/GTDGit/menu_api/internal/models"
)

// PromotionRepository handles data access for promotions.
type PromotionRepository struct {
	db sqlx.ExtContext
}

// NewPromotionRepository creates a new PromotionRepository.
func NewPromotionRepository(db sqlx.ExtContext) *PromotionRepository {
	return &PromotionRepository{db: db}
}

// ActiveOn returns promotions whose inclusive date range contains day.
// When a product has overlapping promotions the largest discount wins.
func (r *PromotionRepository) ActiveOn(ctx context.Context, day time.Time) ([]models.Promotion, error) {
	const q = `
        SELECT DISTINCT ON (product_id)
            promotion_id, product_id, start_date, end_date, discount_percentage
        FROM promotions
        WHERE $1::date BETWEEN start_date AND end_date
        ORDER BY product_id, discount_percentage DESC, promotion_id`

	var promos []models.Promotion
	if err := sqlx.SelectContext(ctx, r.db, &promos, q, day.Format("2006-01-02")); err != nil {
		return nil, err
	}
	return promos, nil
}
