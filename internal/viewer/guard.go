package viewer

import (
	"html/template"

	"github.com/diewo77/stockroom/internal/ownership"
)

// DefaultSkeleton is rendered while loading when GuardOptions.ShowSkeleton
// is set and no Skeleton is given.
const DefaultSkeleton template.HTML = `<span class="skeleton" aria-busy="true"></span>`

// GuardOptions controls what Guard renders when children are withheld.
type GuardOptions struct {
	Fallback     template.HTML
	ShowSkeleton bool
	Skeleton     template.HTML
}

// Guard returns children when the current subject holds p on r. While
// loading it returns the skeleton if requested and nothing otherwise.
// On deny it returns the fallback.
func (v *Viewer) Guard(r ownership.Resource, p ownership.Permission, children template.HTML, opts GuardOptions) template.HTML {
	if v.IsLoading() {
		if !opts.ShowSkeleton {
			return ""
		}
		if opts.Skeleton != "" {
			return opts.Skeleton
		}
		return DefaultSkeleton
	}
	if v.Can(p, r) {
		return children
	}
	return opts.Fallback
}

// Funcs exposes the viewer to html/template:
//
//	{{if canEdit .}}<a href="/products/{{.ID}}/edit">Edit</a>{{end}}
//	{{if can "delete" .}}...{{end}}
//	{{guard "delete" . $button}}
func (v *Viewer) Funcs() template.FuncMap {
	return template.FuncMap{
		"canEdit":   v.CanEdit,
		"canDelete": v.CanDelete,
		"canView":   v.CanView,
		"isOwner":   v.IsOwner,
		"isAdmin":   v.IsAdmin,
		"isLoading": v.IsLoading,
		"currentUser": func() *ownership.Subject {
			return v.CurrentUser()
		},
		// guard renders children only when perm is granted; a skeleton
		// stands in while the subject loads.
		"guard": func(perm string, r ownership.Resource, children template.HTML) template.HTML {
			p, err := ownership.ParsePermission(perm)
			if err != nil {
				return ""
			}
			return v.Guard(r, p, children, GuardOptions{ShowSkeleton: true})
		},
		"can": func(perm string, r ownership.Resource) bool {
			p, err := ownership.ParsePermission(perm)
			if err != nil {
				return false
			}
			return v.Can(p, r)
		},
	}
}
