package handler

import (
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/menu_api/internal/service"
	"github.com/GTDGit/menu_api/internal/utils"
)

// MenuHandler serves the ranked menu and the manual recompute triggers.
type MenuHandler struct {
	ranking   *service.RankingService
	recompute *service.RecomputeService
}

// NewMenuHandler constructs a MenuHandler.
func NewMenuHandler(ranking *service.RankingService, recompute *service.RecomputeService) *MenuHandler {
	return &MenuHandler{ranking: ranking, recompute: recompute}
}

// GetMenu handles GET /api/menu
func (h *MenuHandler) GetMenu(c *gin.Context) {
	items, err := h.ranking.Menu(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	utils.SuccessWithCount(c, 200, "Menu retrieved", items, len(items))
}

// GetRankings handles GET /api/products/rankings
func (h *MenuHandler) GetRankings(c *gin.Context) {
	items, err := h.ranking.Current(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	utils.SuccessWithCount(c, 200, "Rankings retrieved", items, len(items))
}

// GetPopular handles GET /api/products/popular
func (h *MenuHandler) GetPopular(c *gin.Context) {
	items, err := h.ranking.Popular(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	utils.SuccessWithCount(c, 200, "Popular products retrieved", items, len(items))
}

// AdjustMenu handles POST /api/menu/adjust
func (h *MenuHandler) AdjustMenu(c *gin.Context) {
	items, err := h.recompute.RecomputeRanking(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	utils.SuccessWithCount(c, 200, "Menu ranking adjusted", items, len(items))
}

// UpdateAll handles POST /api/menu/update-all
func (h *MenuHandler) UpdateAll(c *gin.Context) {
	items, err := h.recompute.FullRecompute(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	utils.SuccessWithCount(c, 200, "Popularity, prices and ranking updated", items, len(items))
}

// UpdatePrices handles POST /api/dynamic-pricing/update
func (h *MenuHandler) UpdatePrices(c *gin.Context) {
	changes, err := h.recompute.RecomputePrices(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	out := make([]service.PriceChange, 0, len(changes))
	for _, ch := range changes {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	utils.SuccessWithCount(c, 200, "Dynamic prices updated", out, len(out))
}

// UpdatePopularity handles POST /api/popular-products/update
func (h *MenuHandler) UpdatePopularity(c *gin.Context) {
	n, err := h.recompute.RefreshPopularity(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	utils.Success(c, 200, "Popularity scores updated", gin.H{"products": n})
}
