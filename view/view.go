// Package view renders the server-side inventory pages. Templates are
// embedded and parsed once; every render binds the request's viewer so
// the permission helpers answer for the signed-in subject.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"reflect"
	"sync"
	"time"

	"github.com/diewo77/stockroom/internal/viewer"
)

//go:embed templates/*.html
var files embed.FS

var (
	once     sync.Once
	base     *template.Template
	parseErr error
)

func parse() {
	// placeholder funcs; Render rebinds them per request
	base, parseErr = template.New("").Funcs(Funcs(viewer.Resolved(nil))).ParseFS(files, "templates/*.html")
}

// Funcs returns the viewer's permission helpers plus formatting helpers.
func Funcs(v *viewer.Viewer) template.FuncMap {
	fm := v.Funcs()
	fm["money"] = func(a any) string {
		f, _ := toFloat64(a)
		return fmt.Sprintf("%.2f", f)
	}
	fm["mul"] = func(a, b any) float64 {
		fa, oka := toFloat64(a)
		fb, okb := toFloat64(b)
		if !oka || !okb {
			return 0
		}
		return fa * fb
	}
	fm["add"] = func(a, b any) float64 {
		fa, oka := toFloat64(a)
		fb, okb := toFloat64(b)
		if !oka || !okb {
			return 0
		}
		return fa + fb
	}
	fm["totalValue"] = totalStockValue
	// partial renders a named template to HTML; Render binds it to the
	// page's template set.
	fm["partial"] = func(name string, _ any) (template.HTML, error) {
		return "", fmt.Errorf("partial %q: no template set bound", name)
	}
	fm["year"] = func() int { return time.Now().Year() }
	// dict creates a map from key-value pairs for passing to sub-templates.
	// Usage: {{ template "partial" (dict "Key1" val1 "Key2" val2) }}
	fm["dict"] = func(values ...any) map[string]any {
		if len(values)%2 != 0 {
			return nil
		}
		m := make(map[string]any, len(values)/2)
		for i := 0; i < len(values); i += 2 {
			key, ok := values[i].(string)
			if !ok {
				continue
			}
			m[key] = values[i+1]
		}
		return m
	}
	return fm
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// totalStockValue sums StockValue over a slice of items that provide it.
func totalStockValue(items any) float64 {
	v := reflect.ValueOf(items)
	if v.Kind() == reflect.Pointer && !v.IsNil() {
		v = v.Elem()
	}
	if v.Kind() != reflect.Slice {
		return 0
	}
	var sum float64
	for i := 0; i < v.Len(); i++ {
		item := v.Index(i)
		if !item.CanInterface() {
			return 0
		}
		p, ok := item.Interface().(interface{ StockValue() float64 })
		if !ok || (item.Kind() == reflect.Pointer && item.IsNil()) {
			continue
		}
		sum += p.StockValue()
	}
	return sum
}

// Render executes the named page with the helpers bound to v. Output is
// buffered so a failing template never leaves a half-written page.
func Render(w http.ResponseWriter, r *http.Request, v *viewer.Viewer, name string, data map[string]any) error {
	once.Do(parse)
	if parseErr != nil {
		return parseErr
	}
	if data == nil {
		data = map[string]any{}
	}
	if _, exists := data["Year"]; !exists {
		data["Year"] = time.Now().Year()
	}
	if _, exists := data["IsLoggedIn"]; !exists {
		data["IsLoggedIn"] = v.CurrentUser().Authenticated()
	}
	if _, exists := data["Path"]; !exists {
		data["Path"] = r.URL.Path
	}

	t, err := base.Clone()
	if err != nil {
		return err
	}
	fm := Funcs(v)
	fm["partial"] = partial(t)
	var buf bytes.Buffer
	if err := t.Funcs(fm).ExecuteTemplate(&buf, name, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err = buf.WriteTo(w)
	return err
}

func partial(t *template.Template) func(string, any) (template.HTML, error) {
	return func(name string, data any) (template.HTML, error) {
		var b bytes.Buffer
		if err := t.ExecuteTemplate(&b, name, data); err != nil {
			return "", err
		}
		// already escaped by html/template
		return template.HTML(b.String()), nil
	}
}
