package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/diewo77/stockroom/auth"
	"github.com/diewo77/stockroom/httpx"
	"github.com/diewo77/stockroom/internal/apperr"
	"github.com/diewo77/stockroom/internal/db"
	"github.com/diewo77/stockroom/internal/identity"
	"github.com/diewo77/stockroom/internal/models"
	"github.com/diewo77/stockroom/internal/ownership"
)

type stubAuthenticator map[string]*ownership.Subject

func (s stubAuthenticator) Authenticate(_ context.Context, token string) (*ownership.Subject, error) {
	if sub, ok := s[token]; ok {
		return sub, nil
	}
	return nil, errors.New("unknown token")
}

type recordingInvalidator struct{ ids []string }

func (r *recordingInvalidator) Invalidate(_ context.Context, id string) error {
	r.ids = append(r.ids, id)
	return nil
}

var tokens = stubAuthenticator{
	"u1":    {ID: "user-1", Role: ownership.RoleUser},
	"u2":    {ID: "user-2", Role: ownership.RoleUser},
	"admin": {ID: "admin-1", Role: ownership.RoleAdmin},
}

type testApp struct {
	db      *gorm.DB
	handler http.Handler
	roles   *recordingInvalidator
}

func setupApp(t *testing.T) *testApp {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	for _, u := range []models.User{
		{ID: "user-1", Email: "one@example.com"},
		{ID: "user-2", Email: "two@example.com"},
		{ID: "admin-1", Email: "admin@example.com", Role: "ADMIN"},
	} {
		require.NoError(t, gdb.Create(&u).Error)
	}
	orphan := models.Product{ID: "orphan", Code: "CAT-1", Name: "Catalog item"}
	require.NoError(t, gdb.Create(&orphan).Error)

	roles := &recordingInvalidator{}
	rc := NewRouterConfig(gdb, tokens, identity.NewUserStore(gdb), roles)
	return &testApp{db: gdb, handler: NewRouter(rc, []string{"*"}), roles: roles}
}

func (a *testApp) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (a *testApp) createProduct(t *testing.T, token, code string) models.Product {
	t.Helper()
	rec := a.do(http.MethodPost, "/api/products", token, map[string]any{"code": code, "name": code, "quantity": 1})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.Product](t, rec)
}

func TestRouter_Anonymous(t *testing.T) {
	app := setupApp(t)

	rec := app.do(http.MethodGet, "/api/products", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, apperr.CodeUnauthorized, decode[httpx.ErrorResponse](t, rec).Error)

	rec = app.do(http.MethodGet, "/api/products", "forged", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "bad tokens are anonymous")

	rec = app.do(http.MethodGet, "/api/catalog", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[struct {
		Items []models.Product `json:"items"`
	}](t, rec)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "orphan", page.Items[0].ID)

	assert.Equal(t, http.StatusOK, app.do(http.MethodGet, "/healthz", "", nil).Code)
}

func TestRouter_ProductOwnership(t *testing.T) {
	app := setupApp(t)
	p := app.createProduct(t, "u1", "bolt")
	assert.Equal(t, "BOLT", p.Code)
	require.NotNil(t, p.UserID)
	assert.Equal(t, "user-1", *p.UserID)

	// another user cannot see or change it
	assert.Equal(t, http.StatusNotFound, app.do(http.MethodGet, "/api/products/"+p.ID, "u2", nil).Code)
	rec := app.do(http.MethodPatch, "/api/products/"+p.ID, "u2", map[string]any{"name": "mine now"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "You don't have permission to modify this product", decode[httpx.ErrorResponse](t, rec).Message)
	assert.Equal(t, http.StatusForbidden, app.do(http.MethodDelete, "/api/products/"+p.ID, "u2", nil).Code)

	// favorite toggle is exempt from the owner check
	rec = app.do(http.MethodPatch, "/api/products/"+p.ID, "u2", map[string]any{"isFavorite": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[models.Product](t, rec).IsFavorite)

	// the owner can edit
	rec = app.do(http.MethodPatch, "/api/products/"+p.ID, "u1", map[string]any{"name": "Bolt M8"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Bolt M8", decode[models.Product](t, rec).Name)

	// the admin can edit and delete without owning it
	rec = app.do(http.MethodPatch, "/api/products/"+p.ID, "admin", map[string]any{"quantity": 7})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[models.Product](t, rec)
	assert.Equal(t, 7, updated.Quantity)
	assert.Equal(t, "user-1", *updated.UserID)
	assert.Equal(t, http.StatusNoContent, app.do(http.MethodDelete, "/api/products/"+p.ID, "admin", nil).Code)
	assert.Equal(t, http.StatusNotFound, app.do(http.MethodGet, "/api/products/"+p.ID, "u1", nil).Code)
}

func TestRouter_FavoriteBodyCannotDelete(t *testing.T) {
	app := setupApp(t)
	p := app.createProduct(t, "u1", "washer")

	rec := app.do(http.MethodDelete, "/api/products/"+p.ID, "u2", map[string]any{"isFavorite": true})
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
	assert.Equal(t, "You don't have permission to modify this product", decode[httpx.ErrorResponse](t, rec).Message)

	var n int64
	require.NoError(t, app.db.Model(&models.Product{}).Where("id = ?", p.ID).Count(&n).Error)
	assert.Equal(t, int64(1), n, "product must survive")

	// the owner still deletes with the same body
	assert.Equal(t, http.StatusNoContent, app.do(http.MethodDelete, "/api/products/"+p.ID, "u1", map[string]any{"isFavorite": true}).Code)
}

func TestRouter_GuardFailures(t *testing.T) {
	app := setupApp(t)

	rec := app.do(http.MethodPatch, "/api/products/missing", "u1", map[string]any{"name": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Product not found", decode[httpx.ErrorResponse](t, rec).Message)

	rec = app.do(http.MethodPatch, "/api/products/orphan", "u1", map[string]any{"name": "x"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Product has no owner and cannot be modified", decode[httpx.ErrorResponse](t, rec).Message)

	rec = app.do(http.MethodPatch, "/api/products/orphan", "admin", map[string]any{"name": "Catalog item v2"})
	assert.Equal(t, http.StatusOK, rec.Code, "admins manage the catalog")

	req := httptest.NewRequest(http.MethodPatch, "/api/products/orphan", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer admin")
	out := httptest.NewRecorder()
	app.handler.ServeHTTP(out, req)
	assert.Equal(t, http.StatusBadRequest, out.Code)
}

func TestRouter_Validation(t *testing.T) {
	app := setupApp(t)
	rec := app.do(http.MethodPost, "/api/products", "u1", map[string]any{"code": "", "name": "x", "quantity": -2})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[struct {
		Error   string            `json:"error"`
		Details map[string]string `json:"details"`
	}](t, rec)
	assert.Equal(t, "BAD_REQUEST", resp.Error)
	assert.Equal(t, "required", resp.Details["code"])
	assert.Equal(t, "must_not_be_negative", resp.Details["quantity"])
}

func TestRouter_ListsAreScoped(t *testing.T) {
	app := setupApp(t)
	app.createProduct(t, "u1", "a")
	app.createProduct(t, "u2", "b")

	count := func(token string) int {
		rec := app.do(http.MethodGet, "/api/products", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		return len(decode[struct {
			Items []models.Product `json:"items"`
		}](t, rec).Items)
	}
	assert.Equal(t, 1, count("u1"))
	assert.Equal(t, 1, count("u2"))
	assert.Equal(t, 3, count("admin"))
}

func TestRouter_MeAndPermissions(t *testing.T) {
	app := setupApp(t)
	p := app.createProduct(t, "u1", "a")

	rec := app.do(http.MethodGet, "/api/me", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[map[string]string](t, rec)
	assert.Equal(t, "user-1", me["id"])
	assert.Equal(t, "USER", me["role"])
	assert.Equal(t, "one@example.com", me["email"])

	rec = app.do(http.MethodGet, "/api/me/permissions?type=products&id="+p.ID, "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ownership.Decisions{CanView: true, CanEdit: true, CanDelete: true, IsOwner: true},
		decode[ownership.Decisions](t, rec))

	rec = app.do(http.MethodGet, "/api/me/permissions?type=products&id="+p.ID+"&permission=delete", "u2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[map[string]any](t, rec)["allowed"].(bool))

	rec = app.do(http.MethodGet, "/api/me/permissions?type=products&id=missing", "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ownership.Decisions{IsAdmin: true}, decode[ownership.Decisions](t, rec), "missing rows deny even admins")

	assert.Equal(t, http.StatusBadRequest, app.do(http.MethodGet, "/api/me/permissions?type=invoices&id=x", "u1", nil).Code)
	assert.Equal(t, http.StatusBadRequest,
		app.do(http.MethodGet, "/api/me/permissions?type=products&id=x&permission=manage", "u1", nil).Code)
}

func TestRouter_Projects(t *testing.T) {
	app := setupApp(t)
	mine := app.createProduct(t, "u1", "a")
	theirs := app.createProduct(t, "u2", "b")

	rec := app.do(http.MethodPost, "/api/projects", "u1", map[string]any{"name": "Shed"})
	require.Equal(t, http.StatusCreated, rec.Code)
	project := decode[models.Project](t, rec)
	base := "/api/projects/" + project.ID

	assert.Equal(t, http.StatusNoContent, app.do(http.MethodPost, base+"/products", "u1", map[string]any{"productId": mine.ID}).Code)
	assert.Equal(t, http.StatusForbidden, app.do(http.MethodPost, base+"/products", "u1", map[string]any{"productId": theirs.ID}).Code)
	assert.Equal(t, http.StatusForbidden, app.do(http.MethodPost, base+"/products", "u2", map[string]any{"productId": theirs.ID}).Code,
		"the project itself is guarded")

	rec = app.do(http.MethodGet, base, "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[models.Project](t, rec).Products, 1)

	assert.Equal(t, http.StatusNoContent, app.do(http.MethodDelete, base+"/products/"+mine.ID, "u1", nil).Code)
	assert.Equal(t, http.StatusNotFound, app.do(http.MethodDelete, base+"/products/"+mine.ID, "u1", nil).Code)
	assert.Equal(t, http.StatusNoContent, app.do(http.MethodDelete, base, "u1", nil).Code)
}

func TestRouter_Categories(t *testing.T) {
	app := setupApp(t)
	rec := app.do(http.MethodPost, "/api/categories", "u1", map[string]any{"name": "Fasteners"})
	require.Equal(t, http.StatusCreated, rec.Code)
	c := decode[models.Category](t, rec)

	assert.Equal(t, http.StatusForbidden, app.do(http.MethodPatch, "/api/categories/"+c.ID, "u2", map[string]any{"name": "x"}).Code)
	assert.Equal(t, http.StatusOK, app.do(http.MethodPatch, "/api/categories/"+c.ID, "u1", map[string]any{"name": "Hardware"}).Code)
	assert.Equal(t, http.StatusNoContent, app.do(http.MethodDelete, "/api/categories/"+c.ID, "u1", nil).Code)
}

func TestRouter_Admin(t *testing.T) {
	app := setupApp(t)
	p := app.createProduct(t, "u1", "a")

	assert.Equal(t, http.StatusForbidden, app.do(http.MethodGet, "/api/admin/users", "u1", nil).Code)
	rec := app.do(http.MethodGet, "/api/admin/users", "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.User](t, rec), 3)

	// role changes drop the cached role
	assert.Equal(t, http.StatusBadRequest, app.do(http.MethodPut, "/api/admin/users/user-2/role", "admin", map[string]any{"role": "owner"}).Code)
	assert.Equal(t, http.StatusNotFound, app.do(http.MethodPut, "/api/admin/users/ghost/role", "admin", map[string]any{"role": "ADMIN"}).Code)
	assert.Equal(t, http.StatusNoContent, app.do(http.MethodPut, "/api/admin/users/user-2/role", "admin", map[string]any{"role": "ADMIN"}).Code)
	assert.Equal(t, []string{"user-2"}, app.roles.ids)

	// transfer to another user, then orphan it
	owner := "/api/admin/products/" + p.ID + "/owner"
	assert.Equal(t, http.StatusForbidden, app.do(http.MethodPut, owner, "u1", map[string]any{"userId": "user-2"}).Code)
	assert.Equal(t, http.StatusBadRequest, app.do(http.MethodPut, owner, "admin", map[string]any{}).Code)
	assert.Equal(t, http.StatusBadRequest, app.do(http.MethodPut, owner, "admin", map[string]any{"userId": "ghost"}).Code)
	assert.Equal(t, http.StatusNotFound, app.do(http.MethodPut, "/api/admin/invoices/x/owner", "admin", map[string]any{"userId": nil}).Code)

	assert.Equal(t, http.StatusNoContent, app.do(http.MethodPut, owner, "admin", map[string]any{"userId": "user-2"}).Code)
	assert.Equal(t, http.StatusNotFound, app.do(http.MethodGet, "/api/products/"+p.ID, "u1", nil).Code)
	assert.Equal(t, http.StatusOK, app.do(http.MethodGet, "/api/products/"+p.ID, "u2", nil).Code)

	assert.Equal(t, http.StatusNoContent, app.do(http.MethodPut, owner, "admin", map[string]any{"userId": nil}).Code)
	rec = app.do(http.MethodGet, "/api/catalog", "", nil)
	assert.Contains(t, rec.Body.String(), p.ID, "orphaned products join the catalog")
}

func TestRouter_Pages(t *testing.T) {
	app := setupApp(t)
	mine := app.createProduct(t, "u1", "a")

	rec := app.do(http.MethodGet, "/products", "", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/catalog", rec.Header().Get("Location"))

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	req.AddCookie(&http.Cookie{Name: auth.TokenCookie, Value: "u1"})
	rec = httptest.NewRecorder()
	app.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `href="/products/`+mine.ID+`/edit"`)

	rec = app.do(http.MethodGet, "/catalog", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Catalog item")
	assert.NotContains(t, rec.Body.String(), "/orphan/edit", "users cannot edit the catalog")

	rec = app.do(http.MethodGet, "/catalog", "admin", nil)
	assert.Contains(t, rec.Body.String(), `href="/products/orphan/edit"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", parseLevel("debug").String())
	assert.Equal(t, "WARN", parseLevel("warn").String())
	assert.Equal(t, "INFO", parseLevel("nonsense").String())
}
