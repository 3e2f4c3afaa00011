package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davicafu/hexasync/internal/product/application"
	"github.com/davicafu/hexasync/tests/mocks"
)

type productHTTPResponse struct {
	Data struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Price string `json:"price"`
		Stock int    `json:"stock"`
	} `json:"data"`
}

func setupRouter() (*gin.Engine, *mocks.RecordingOutbox) {
	gin.SetMode(gin.TestMode)
	outbox := &mocks.RecordingOutbox{}
	service := application.NewProductService(mocks.NewInMemoryProductRepo(), outbox, zap.NewNop())
	r := gin.New()
	RegisterProductRoutes(r, NewProductHandler(service))
	return r, outbox
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestProductHTTP_CreateThenGet(t *testing.T) {
	r, outbox := setupRouter()

	w := do(r, http.MethodPost, "/products", `{"name":"Cuaderno","price":"3.75","stock":20}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created productHTTPResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "3.75", created.Data.Price)
	assert.Equal(t, 20, created.Data.Stock)
	assert.Len(t, outbox.Events, 1)

	w = do(r, http.MethodGet, "/products/"+created.Data.ID, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/products?limit=10", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), created.Data.ID)
}

func TestProductHTTP_Errors(t *testing.T) {
	r, _ := setupRouter()

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"sin nombre", http.MethodPost, "/products", `{"price":"1","stock":1}`, http.StatusBadRequest},
		{"precio negativo", http.MethodPost, "/products", `{"name":"X","price":"-1","stock":1}`, http.StatusBadRequest},
		{"id invalido", http.MethodGet, "/products/nope", "", http.StatusBadRequest},
		{"no existe", http.MethodGet, "/products/" + uuid.NewString(), "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}
