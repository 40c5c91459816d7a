package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/menu_api/internal/models"
)

func orderBody(productID, qty int) map[string]interface{} {
	return map[string]interface{}{
		"orderItems": []map[string]int{{"productId": productID, "quantity": qty}},
	}
}

func TestOrderHandler_Lifecycle(t *testing.T) {
	s := newTestServer(t)
	s.db.PutProduct(models.Product{ID: 1, Name: "Latte", Price: decimal.RequireFromString("3.00")}, 10)
	_, token := s.customer(t, "ada", models.RoleCustomer)

	// The first cart read opens the customer's shopping session.
	w := s.do(t, request{method: http.MethodGet, path: "/api/cart", token: token})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, request{method: http.MethodPost, path: "/api/orders", token: token, body: orderBody(1, 2)})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created models.OrderSummary
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &created))
	assert.Equal(t, "ada", created.CustomerName)
	assert.Equal(t, "Latte (2 x £3.00)", created.OrderDetails)
	assert.Contains(t, string(decode(t, w).Data), `"OrderStatus":"Pending"`)

	path := "/api/orders/" + strconv.Itoa(created.OrderID)

	w = s.do(t, request{method: http.MethodGet, path: path, token: token})
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, request{method: http.MethodPut, path: path, token: token, body: map[string]string{"orderStatus": "Preparing"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, string(decode(t, w).Data), `"OrderStatus":"Preparing"`)

	w = s.do(t, request{method: http.MethodPut, path: path, token: token, body: map[string]string{"orderStatus": "Teleported"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ORDER_UPDATE", errorCode(t, w))

	w = s.do(t, request{method: http.MethodDelete, path: path, token: token})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	level, _ := s.db.Stock(1)
	assert.Equal(t, 10, level)

	w = s.do(t, request{method: http.MethodGet, path: path, token: token})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "ORDER_NOT_FOUND", errorCode(t, w))
}

func TestOrderHandler_UpdateUsesCamelCaseBody(t *testing.T) {
	s := newTestServer(t)
	s.db.PutProduct(models.Product{ID: 1, Name: "Latte", Price: decimal.RequireFromString("3.00")}, 10)
	_, token := s.customer(t, "ada", models.RoleCustomer)
	boID, _ := s.customer(t, "bo", models.RoleCustomer)
	require.Equal(t, http.StatusOK, s.do(t, request{method: http.MethodGet, path: "/api/cart", token: token}).Code)

	w := s.do(t, request{method: http.MethodPost, path: "/api/orders", token: token, body: orderBody(1, 1)})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.OrderSummary
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &created))

	body := map[string]interface{}{
		"customerId":  boID,
		"orderDate":   "2024-07-01",
		"orderTime":   "08:30:00",
		"orderStatus": "Completed",
	}
	w = s.do(t, request{method: http.MethodPut, path: "/api/orders/" + strconv.Itoa(created.OrderID), token: token, body: body})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var updated models.OrderSummary
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &updated))
	assert.Equal(t, boID, updated.CustomerID)
	assert.Equal(t, "bo", updated.CustomerName)
	assert.Equal(t, "2024-07-01", updated.OrderDate)
	assert.Equal(t, "08:30:00", updated.OrderTime)
	assert.Equal(t, models.OrderStatusCompleted, updated.OrderStatus)
}

func TestOrderHandler_CreateErrors(t *testing.T) {
	s := newTestServer(t)
	s.db.PutProduct(models.Product{ID: 1, Name: "Latte", Price: decimal.RequireFromString("3.00")}, 3)
	_, token := s.customer(t, "ada", models.RoleCustomer)
	_, noSession := s.customer(t, "bo", models.RoleCustomer)
	require.Equal(t, http.StatusOK, s.do(t, request{method: http.MethodGet, path: "/api/cart", token: token}).Code)

	tests := []struct {
		name     string
		token    string
		body     interface{}
		wantCode int
		wantErr  string
	}{
		{"no token", "", orderBody(1, 1), http.StatusUnauthorized, "UNAUTHORIZED"},
		{"malformed body", token, `{"orderItems":`, http.StatusBadRequest, "MISSING_FIELD"},
		{"insufficient stock", token, orderBody(1, 5), http.StatusBadRequest, "INSUFFICIENT_STOCK"},
		{"zero quantity", token, orderBody(1, 0), http.StatusBadRequest, "INVALID_QUANTITY"},
		{"unknown product", token, orderBody(42, 1), http.StatusBadRequest, "INVALID_REFERENCE"},
		{"no session", noSession, orderBody(1, 1), http.StatusBadRequest, "SESSION_MISSING"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, request{method: http.MethodPost, path: "/api/orders", token: tt.token, body: tt.body})
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
			assert.Equal(t, tt.wantErr, errorCode(t, w))
		})
	}

	level, _ := s.db.Stock(1)
	assert.Equal(t, 3, level)
	assert.Zero(t, s.db.OrderCount())
}

func TestOrderHandler_InvalidID(t *testing.T) {
	s := newTestServer(t)
	_, token := s.customer(t, "ada", models.RoleCustomer)

	w := s.do(t, request{method: http.MethodGet, path: "/api/orders/abc", token: token})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ID", errorCode(t, w))
}
