package handlers_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"restaurant-ordering/internal/auth"
	"restaurant-ordering/internal/common/logger"
	"restaurant-ordering/internal/events"
	"restaurant-ordering/internal/microservices/order"
	"restaurant-ordering/internal/microservices/order/handlers"
	"restaurant-ordering/internal/microservices/order/service"
	"restaurant-ordering/internal/pricing"
	"restaurant-ordering/internal/repository"
	"restaurant-ordering/internal/ticket"
)

func newRouter(t *testing.T, authn *auth.Authenticator) *mux.Router {
	t.Helper()
	lg := logger.NewWithZap("test", zap.NewNop())
	svc := service.New(service.Deps{
		Store:     repository.NewMemoryStore(),
		Tickets:   ticket.NewMemorySequencer(time.UTC),
		Publisher: events.Noop{},
		Rules:     pricing.DefaultRules(),
		UploadDir: t.TempDir(),
		Logger:    lg,
	})
	r := mux.NewRouter()
	g := order.Guards{}
	if authn != nil {
		g.Staff = authn.Require(auth.RoleStaff)
	}
	order.Mount(r.PathPrefix("/api").Subrouter(), handlers.New(svc, lg), g)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var v map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestOrderFlow(t *testing.T) {
	r := newRouter(t, nil)

	rec := do(t, r, http.MethodPost, "/api/menu", `{"id":"latte","name":"Latte","price":4.5,"category":"drinks"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "/api/menu/latte", rec.Header().Get("Location"))

	rec = do(t, r, http.MethodPost, "/api/members", `{"phone":"010-1234-5678","name":"Kim"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "01012345678", decode(t, rec)["phone"])

	rec = do(t, r, http.MethodPost, "/api/members/01012345678/points", `{"delta":20,"reason":"welcome"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// client prices and totals are ignored
	body := `{"order_type":"takeout","member_phone":"01012345678","use_points":5,
		"total":0.01,"items":[{"menu_item_id":"latte","quantity":4,"price":0.01}]}`
	rec = do(t, r, http.MethodPost, "/api/orders/quote", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	q := decode(t, rec)
	assert.Equal(t, 18.0, q["subtotal"])
	assert.Equal(t, 13.0, q["total"])
	assert.Equal(t, 16.0, q["member_points_after"])

	rec = do(t, r, http.MethodPost, "/api/orders", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	o := decode(t, rec)
	id := o["id"].(string)
	assert.Equal(t, 13.0, o["total"])
	assert.Equal(t, 1.0, o["earned_points"])
	assert.Equal(t, 1.0, o["ticket_number"])
	assert.Equal(t, "PENDING_PAYMENT", o["status"])

	rec = do(t, r, http.MethodGet, "/api/members/01012345678", "")
	assert.Equal(t, 16.0, decode(t, rec)["points"])

	rec = do(t, r, http.MethodPatch, "/api/orders/"+id+"/status", `{"status":"COOKING"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "COOKING", decode(t, rec)["status"])

	rec = do(t, r, http.MethodPatch, "/api/orders/"+id+"/status", `{"status":"BURNT"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decode(t, rec)["type"])

	rec = do(t, r, http.MethodGet, "/api/orders/"+id+"/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var hist []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	assert.Len(t, hist, 2)

	rec = do(t, r, http.MethodGet, "/api/orders?status=COOKING", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestErrors(t *testing.T) {
	r := newRouter(t, nil)

	rec := do(t, r, http.MethodGet, "/api/orders/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	p := decode(t, rec)
	assert.Equal(t, "not_found", p["type"])
	assert.Equal(t, "Not Found", p["title"])

	rec = do(t, r, http.MethodPost, "/api/orders", `{"order_type":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodPost, "/api/members", `{"phone":"01012345678","name":"A"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = do(t, r, http.MethodPost, "/api/members", `{"phone":"01012345678","name":"B"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, r, http.MethodDelete, "/api/menu/ghost", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMenuFiltersAndUpdate(t *testing.T) {
	r := newRouter(t, nil)
	do(t, r, http.MethodPost, "/api/menu", `{"id":"a","name":"Americano","price":3,"category":"drinks","available":false}`)
	do(t, r, http.MethodPost, "/api/menu", `{"id":"b","name":"Bagel","price":2.75,"category":"bakery"}`)

	rec := do(t, r, http.MethodGet, "/api/menu?available=true", "")
	var items []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "b", items[0]["id"])

	rec = do(t, r, http.MethodPut, "/api/menu/a", `{"available":true,"price":3.25}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 3.25, decode(t, rec)["price"])

	rec = do(t, r, http.MethodDelete, "/api/menu/a", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestUploadImage(t *testing.T) {
	r := newRouter(t, nil)
	do(t, r, http.MethodPost, "/api/menu", `{"id":"b","name":"Bagel","price":2.75,"category":"bakery"}`)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", "bagel.gif")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/menu/b/image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, strings.HasSuffix(decode(t, rec)["image"].(string), ".gif"))

	rec = do(t, r, http.MethodPost, "/api/menu/b/image", `not multipart`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStaffGuard(t *testing.T) {
	authn := auth.New("secret", time.Hour)
	r := newRouter(t, authn)

	rec := do(t, r, http.MethodPost, "/api/menu", `{"name":"Tea","price":2,"category":"drinks"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	tok, err := authn.Issue("manager", auth.RoleStaff)
	require.NoError(t, err)
	rec = do(t, r, http.MethodPost, "/api/menu", `{"name":"Tea","price":2,"category":"drinks"}`, "Authorization", "Bearer "+tok)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, r, http.MethodGet, "/api/menu", "")
	assert.Equal(t, http.StatusOK, rec.Code, "reads stay public")
}

func TestUpdateStatus_TokenSubjectIsRecorded(t *testing.T) {
	authn := auth.New("secret", time.Hour)
	r := newRouter(t, authn)
	tok, err := authn.Issue("manager", auth.RoleStaff)
	require.NoError(t, err)
	bearer := "Bearer " + tok

	rec := do(t, r, http.MethodPost, "/api/menu", `{"id":"tea","name":"Tea","price":2,"category":"drinks"}`, "Authorization", bearer)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = do(t, r, http.MethodPost, "/api/orders", `{"order_type":"takeout","items":[{"menu_item_id":"tea","quantity":1}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode(t, rec)["id"].(string)

	rec = do(t, r, http.MethodPatch, "/api/orders/"+id+"/status", `{"status":"PAID","changed_by":"someone-else"}`, "Authorization", bearer)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, r, http.MethodGet, "/api/orders/"+id+"/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var hist []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	require.Len(t, hist, 2)
	assert.Equal(t, "manager", hist[1]["changed_by"])
}

func TestUpdateStatus_ChangedByWithoutAuth(t *testing.T) {
	r := newRouter(t, nil)

	rec := do(t, r, http.MethodPost, "/api/menu", `{"id":"tea","name":"Tea","price":2,"category":"drinks"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = do(t, r, http.MethodPost, "/api/orders", `{"order_type":"takeout","items":[{"menu_item_id":"tea","quantity":1}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode(t, rec)["id"].(string)

	rec = do(t, r, http.MethodPatch, "/api/orders/"+id+"/status", `{"status":"PAID","changed_by":"cashier-2"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, r, http.MethodGet, "/api/orders/"+id+"/history", "")
	var hist []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	require.Len(t, hist, 2)
	assert.Equal(t, "cashier-2", hist[1]["changed_by"])
}
