package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/menu_api/internal/utils"
)

const (
	// CartCookie holds the anonymous cart key.
	CartCookie = "cart_sid"
	// ContextCartKey is the gin context key of the anonymous cart key.
	ContextCartKey = "cart_key"

	cartCookieMaxAge = 30 * 24 * 60 * 60
)

// CartSession makes sure every request carries an anonymous cart key. The
// key is issued as an HttpOnly cookie the first time it is needed.
func CartSession(secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, err := c.Cookie(CartCookie)
		if err != nil || !strings.HasPrefix(key, "cart_") {
			key = utils.GenerateCartKey()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(CartCookie, key, cartCookieMaxAge, "/", "", secure, true)
		}
		c.Set(ContextCartKey, key)
		c.Next()
	}
}
