package view

import (
	"context"
	"html/template"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diewo77/stockroom/internal/models"
	"github.com/diewo77/stockroom/internal/ownership"
	"github.com/diewo77/stockroom/internal/viewer"
)

func strPtr(s string) *string { return &s }

func pageData(products []*models.Product) map[string]any {
	return map[string]any{
		"Title":    "My products",
		"Products": products,
		"Query":    "",
		"Total":    int64(len(products)),
		"Page":     1,
		"PrevPage": 0,
		"NextPage": 2,
		"HasNext":  false,
	}
}

func render(t *testing.T, v *viewer.Viewer, data map[string]any) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, Render(rec, req, v, "products.html", data))
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	return rec.Body.String()
}

func TestRender_ControlsFollowOwnership(t *testing.T) {
	products := []*models.Product{
		{ID: "mine", Code: "A", Name: "Mine", Quantity: 2, UnitPrice: 1.5, UserID: strPtr("user-1")},
		{ID: "theirs", Code: "B", Name: "Theirs", UserID: strPtr("user-2")},
		{ID: "orphan", Code: "C", Name: "Orphan"},
	}

	body := render(t, viewer.Resolved(&ownership.Subject{ID: "user-1", Role: ownership.RoleUser}), pageData(products))
	assert.Contains(t, body, `href="/products/mine/edit"`)
	assert.NotContains(t, body, `href="/products/theirs/edit"`)
	assert.NotContains(t, body, `href="/products/orphan/edit"`)
	assert.Contains(t, body, `class="delete" data-id="mine"`)
	assert.NotContains(t, body, "badge-admin")
	assert.Contains(t, body, "3.00", "stock value column")

	body = render(t, viewer.Resolved(&ownership.Subject{ID: "admin-1", Role: ownership.RoleAdmin}), pageData(products))
	for _, id := range []string{"mine", "theirs", "orphan"} {
		assert.Contains(t, body, `href="/products/`+id+`/edit"`)
	}
	assert.Contains(t, body, "admin override")
}

func TestRender_LoadingViewerHidesControls(t *testing.T) {
	v := viewer.New(viewer.FetcherFunc(func(ctx context.Context) (*ownership.Subject, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}))
	products := []*models.Product{{ID: "mine", Code: "A", Name: "Mine", UserID: strPtr("user-1")}}

	body := render(t, v, pageData(products))
	assert.NotContains(t, body, "/edit")
	assert.NotContains(t, body, `class="delete"`)
	assert.Equal(t, 2, strings.Count(body, string(viewer.DefaultSkeleton)), "one skeleton per guarded control")
	assert.Contains(t, body, "Guest")
}

func TestRender_GuardedControlsAreEscaped(t *testing.T) {
	products := []*models.Product{{ID: `x"><script>`, Code: "A", Name: "A", UserID: strPtr("user-1")}}
	body := render(t, viewer.Resolved(&ownership.Subject{ID: "user-1", Role: ownership.RoleUser}), pageData(products))
	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, `class="edit"`)
}

func TestPartial_UnboundSetFails(t *testing.T) {
	fn := Funcs(viewer.Resolved(nil))["partial"].(func(string, any) (template.HTML, error))
	_, err := fn("edit-control", nil)
	assert.Error(t, err)
}

func TestRender_UnknownTemplate(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	err := Render(rec, req, viewer.Resolved(nil), "missing.html", nil)
	assert.Error(t, err)
	assert.Empty(t, rec.Body.String(), "nothing is written on failure")
}

func TestTotalStockValue(t *testing.T) {
	items := []*models.Product{{Quantity: 2, UnitPrice: 2.5}, nil, {Quantity: 1, UnitPrice: 1}}
	assert.InDelta(t, 6.0, totalStockValue(items), 1e-9)
	assert.Zero(t, totalStockValue("not a slice"))
}

func TestFuncs_Helpers(t *testing.T) {
	fm := Funcs(viewer.Resolved(nil))
	money := fm["money"].(func(any) string)
	assert.Equal(t, "12.50", money(12.5))
	assert.Equal(t, "3.00", money(3))

	dict := fm["dict"].(func(...any) map[string]any)
	assert.Equal(t, map[string]any{"a": 1}, dict("a", 1))
	assert.Nil(t, dict("odd"))

	for _, name := range []string{"canEdit", "canDelete", "canView", "isOwner", "isAdmin", "can"} {
		assert.Contains(t, fm, name)
	}
}
