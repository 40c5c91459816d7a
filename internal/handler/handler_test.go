package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/menu_api/internal/middleware"
	"github.com/GTDGit/menu_api/internal/models"
	"github.com/GTDGit/menu_api/internal/repository/memory"
	"github.com/GTDGit/menu_api/internal/service"
	"github.com/GTDGit/menu_api/internal/utils"
)

type testServer struct {
	router *gin.Engine
	db     *memory.DB
}

func fixedClock() time.Time { return time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC) }

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	utils.ConfigureJWT("handler-test-secret", time.Hour)

	db := memory.New()
	stores := db.Stores()
	signals := service.NewSignalService(stores, time.UTC)
	pricing := service.NewPricingService(stores.Products, signals, fixedClock)
	ranking := service.NewRankingService(stores.Products, signals, nil, nil, fixedClock)
	recompute := service.NewRecomputeService(signals, pricing, ranking, nil)
	orders := service.NewOrderService(stores, db, recompute, nil, nil, time.UTC, fixedClock)
	carts := service.NewCartService(stores, db, nil, nil)
	auth := service.NewAuthService(stores.Customers, stores.Sessions, carts)
	restock := service.NewRestockService(service.NewInventoryLedger(stores.Inventory), recompute, nil)

	orderH := NewOrderHandler(orders)
	menuH := NewMenuHandler(ranking, recompute)
	cartH := NewCartHandler(carts)
	authH := NewAuthHandler(auth)
	invH := NewInventoryHandler(restock)
	jwtMw := middleware.NewJWTMiddleware()

	r := gin.New()
	api := r.Group("/api")
	api.GET("/menu", menuH.GetMenu)
	api.GET("/products/popular", menuH.GetPopular)

	authG := api.Group("/auth", middleware.CartSession(false), middleware.NewLoginRateLimiter(3, time.Minute).Handle())
	authG.POST("/register", authH.Register)
	authG.POST("/login", authH.Login)

	cart := api.Group("/cart", jwtMw.Optional(), middleware.CartSession(false))
	cart.GET("", cartH.GetCart)
	cart.POST("", cartH.AddItem)
	cart.DELETE("/:productId", cartH.RemoveItem)

	ord := api.Group("/orders", jwtMw.Handle())
	ord.POST("", orderH.CreateOrder)
	ord.GET("/:id", orderH.GetOrder)
	ord.PUT("/:id", orderH.UpdateOrder)
	ord.DELETE("/:id", orderH.DeleteOrder)

	admin := api.Group("", jwtMw.Handle(), jwtMw.RequireRole(models.RoleAdmin))
	admin.POST("/menu/update-all", menuH.UpdateAll)
	admin.POST("/dynamic-pricing/update", menuH.UpdatePrices)
	admin.POST("/inventory/:productId/restock", invH.Restock)

	return &testServer{router: r, db: db}
}

func (s *testServer) customer(t *testing.T, name, role string) (int, string) {
	t.Helper()
	id := s.db.AddCustomer(models.Customer{Name: name, Email: name + "@example.com", Role: role})
	token, err := utils.GenerateJWT(id, name+"@example.com", role)
	require.NoError(t, err)
	return id, token
}

type request struct {
	method  string
	path    string
	body    interface{}
	token   string
	cookies []*http.Cookie
}

func (s *testServer) do(t *testing.T, req request) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if req.body != nil {
		switch b := req.body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	httpReq := httptest.NewRequest(req.method, req.path, &buf)
	httpReq.Header.Set("Content-Type", "application/json")
	if req.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.token)
	}
	for _, c := range req.cookies {
		httpReq.AddCookie(c)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httpReq)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
	Meta struct {
		Count *int `json:"count"`
	} `json:"meta"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	env := decode(t, w)
	require.NotNil(t, env.Error, w.Body.String())
	return env.Error.Code
}
