package handlers

import (
	"log/slog"
	"net/http"

	"github.com/diewo77/stockroom/internal/models"
	"github.com/diewo77/stockroom/internal/policy"
	"github.com/diewo77/stockroom/internal/services"
	"github.com/diewo77/stockroom/internal/viewer"
	"github.com/diewo77/stockroom/view"
)

// PageHandler renders the HTML inventory pages.
type PageHandler struct {
	products *services.ProductService
}

func NewPageHandler(products *services.ProductService) *PageHandler {
	return &PageHandler{products: products}
}

// Inventory renders the subject's products. Anonymous visitors are sent
// to the catalog.
func (h *PageHandler) Inventory(w http.ResponseWriter, r *http.Request) {
	s := subject(r)
	if s == nil {
		http.Redirect(w, r, "/catalog", http.StatusSeeOther)
		return
	}
	params := listParams(r)
	page, err := h.products.List(r.Context(), s, services.ProductFilter{ListParams: params})
	h.render(w, r, viewer.Resolved(s), "My products", params, page, err)
}

// Catalog renders the shared catalog.
func (h *PageHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	params := listParams(r)
	page, err := h.products.ListPublic(r.Context(), params)
	h.render(w, r, viewer.Resolved(subject(r)), "Catalog", params, page, err)
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, v *viewer.Viewer, title string,
	params services.ListParams, page *services.Page[models.Product], err error) {
	data := map[string]any{
		"Title": title,
		"Query": params.Query,
	}
	rows := []*models.Product{}
	if err != nil {
		data["Notice"] = viewer.NoticeFor(err, policy.LabelProduct)
		page = &services.Page[models.Product]{Page: 1}
	}
	for i := range page.Items {
		rows = append(rows, &page.Items[i])
	}
	data["Products"] = rows
	data["Total"] = page.Total
	data["Page"] = page.Page
	data["PrevPage"] = page.Page - 1
	data["NextPage"] = page.Page + 1
	data["HasNext"] = int64(page.Page*page.Limit) < page.Total

	if err := view.Render(w, r, v, "products.html", data); err != nil {
		slog.ErrorContext(r.Context(), "render failed", "page", title, "err", err)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}
