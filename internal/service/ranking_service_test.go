package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/menu_api/internal/models"
)

func ids(items []models.MenuItem) []int {
	out := make([]int, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestComputeRanking_OrdersByCombinedScore(t *testing.T) {
	sig, products := scoredSignals(4, 9)
	// Contextual demand lifts product 4 above everything else.
	sig.Contextual[4] = 10

	items := ComputeRanking(products, sig)

	assert.Equal(t, []int{4, 1, 2, 3}, ids(items))
	assert.Equal(t, "11", items[0].PopularityScore.String())
	for i, it := range items {
		assert.Equal(t, i+1, it.Position)
		assert.True(t, it.Ranking.Equal(decimal.NewFromInt(int64(i+1))))
	}
}

func TestComputeRanking_TiesBreakByID(t *testing.T) {
	sig, products := scoredSignals(3, 9)
	for id := range sig.Global {
		sig.Global[id] = decimal.NewFromInt(5)
	}
	// Input order must not matter.
	products[0], products[2] = products[2], products[0]

	items := ComputeRanking(products, sig)

	assert.Equal(t, []int{1, 2, 3}, ids(items))
}

func TestComputeRanking_Tiers(t *testing.T) {
	sig, products := scoredSignals(20, 9)

	items := ComputeRanking(products, sig)

	require.Len(t, items, 20)
	for _, it := range items {
		switch {
		case it.Position <= 6:
			assert.True(t, it.IsMostPopular, "position %d", it.Position)
			assert.False(t, it.IsPopular, "position %d", it.Position)
		case it.Position <= 15:
			assert.False(t, it.IsMostPopular, "position %d", it.Position)
			assert.True(t, it.IsPopular, "position %d", it.Position)
		default:
			assert.False(t, it.IsMostPopular, "position %d", it.Position)
			assert.False(t, it.IsPopular, "position %d", it.Position)
		}
	}
}

func TestComputeRanking_LowStockPenaltyCanReorder(t *testing.T) {
	sig, products := scoredSignals(25, 9)
	sig.Stock[25] = 4

	items := ComputeRanking(products, sig)

	// 25 x 0.95 = 23.75 sorts ahead of 24.
	assert.Equal(t, 25, items[23].ID)
	assert.Equal(t, 24, items[24].ID)
	assert.Equal(t, "23.75", items[23].Ranking.String())
	assert.True(t, items[23].IsLowStock)
	assert.Equal(t, 24, items[23].Position)
}

func TestComputeRanking_CarriesPromotion(t *testing.T) {
	sig, products := scoredSignals(2, 9)
	sig.Promotions[2] = dec("15")

	items := ComputeRanking(products, sig)

	assert.False(t, items[0].IsPromotion)
	assert.True(t, items[1].IsPromotion)
	assert.Equal(t, "15", items[1].DiscountPercentage.String())
}

type fakeMenuCache struct {
	items []models.MenuItem
	sets  int
}

func (c *fakeMenuCache) SetMenu(_ context.Context, items []models.MenuItem) error {
	c.items = items
	c.sets++
	return nil
}

func (c *fakeMenuCache) GetMenu(_ context.Context) ([]models.MenuItem, error) {
	return c.items, nil
}

func TestRankingService_RecomputeStoresRanksAndCaches(t *testing.T) {
	f := newFixture(t, 9)
	f.db.PutProduct(product(1, "Latte", "3.00"), 50)
	f.db.PutProduct(product(2, "Flat White", "3.20"), 50)
	f.db.SetPopularity(2, 10)
	f.db.SetPopularity(1, 5)

	cache := &fakeMenuCache{}
	svc := NewRankingService(f.db.Stores().Products, f.signals, stubImages{}, cache, clockAt(9))

	items, err := svc.Recompute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{2, 1}, ids(items))
	assert.Equal(t, "img/2_Flat_White.png", items[0].ImagePath)
	assert.True(t, f.db.Product(2).Ranking.Equal(decimal.NewFromInt(1)))
	assert.True(t, f.db.Product(1).Ranking.Equal(decimal.NewFromInt(2)))
	assert.Equal(t, 1, cache.sets)

	menu, err := svc.Menu(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, ids(menu))
}

func TestRankingService_PopularKeepsTopFifteen(t *testing.T) {
	f := newFixture(t, 9)
	for id := 1; id <= 20; id++ {
		f.db.PutProduct(product(id, "Item", "2.00"), 50)
		f.db.SetPopularity(id, int64(100-id))
	}
	_, err := f.ranking.Recompute(context.Background())
	require.NoError(t, err)

	popular, err := f.ranking.Popular(context.Background())
	require.NoError(t, err)

	assert.Len(t, popular, 15)
	assert.Equal(t, 1, popular[0].ID)
	assert.Equal(t, 15, popular[14].ID)
}
