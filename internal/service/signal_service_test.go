package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/menu_api/internal/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestSignalService_Collect(t *testing.T) {
	f := newFixture(t, 12)
	f.db.PutProduct(product(1, "Latte", "3.00"), 15)
	f.db.PutProduct(product(2, "Scone", "2.50"), 60)
	f.db.PutProduct(product(3, "Gift Card", "10.00"), -1)
	f.db.SetPattern(1, 12, 4)
	f.db.SetPattern(1, 13, 9)
	f.db.SetPopularity(1, 10)
	f.db.SetPopularity(2, 3)

	// The clock reads 2024-06-03.
	f.db.AddPromotion(models.Promotion{ProductID: 2, StartDate: day(2024, 6, 1), EndDate: day(2024, 6, 3), DiscountPercentage: dec("10")})
	f.db.AddPromotion(models.Promotion{ProductID: 2, StartDate: day(2024, 6, 3), EndDate: day(2024, 6, 9), DiscountPercentage: dec("25")})
	f.db.AddPromotion(models.Promotion{ProductID: 1, StartDate: day(2024, 6, 4), EndDate: day(2024, 6, 9), DiscountPercentage: dec("50")})

	sig, err := f.signals.Collect(context.Background(), clockAt(12)())
	require.NoError(t, err)

	assert.Equal(t, 12, sig.Hour)
	assert.Equal(t, map[int]int{1: 4}, sig.Contextual)
	assert.Equal(t, "14", sig.Combined(1).String())
	assert.Equal(t, "3", sig.Combined(2).String())

	d, ok := sig.Promotion(2)
	require.True(t, ok)
	assert.Equal(t, "25", d.String())
	_, ok = sig.Promotion(1)
	assert.False(t, ok, "promotion starting tomorrow is not active")

	assert.True(t, sig.IsLowStock(1))
	assert.False(t, sig.IsLowStock(2))
	assert.False(t, sig.IsLowStock(3), "products without inventory are never low stock")
}

func TestSignalService_HourFollowsLocation(t *testing.T) {
	f := newFixture(t, 23)
	loc := time.FixedZone("UTC+2", 2*60*60)
	svc := NewSignalService(f.db.Stores(), loc)

	sig, err := svc.Collect(context.Background(), clockAt(23)())
	require.NoError(t, err)

	assert.Equal(t, 1, sig.Hour)
	assert.Equal(t, 4, sig.At.Day())
}
