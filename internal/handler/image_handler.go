package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/GTDGit/menu_api/internal/service"
	"github.com/GTDGit/menu_api/internal/utils"
)

// ImageHandler exposes maintenance of the product image catalog.
type ImageHandler struct {
	catalog *service.ImageCatalog
}

// NewImageHandler constructs an ImageHandler.
func NewImageHandler(catalog *service.ImageCatalog) *ImageHandler {
	return &ImageHandler{catalog: catalog}
}

// Rebuild handles POST /api/images/rebuild
func (h *ImageHandler) Rebuild(c *gin.Context) {
	n, err := h.catalog.Rebuild(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	utils.Success(c, 200, "Image catalog rebuilt", gin.H{"images": n})
}
