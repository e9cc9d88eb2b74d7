package httpx

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/edusuite/portal/internal/service"
)

// HomeHandlers renders the gated portal pages. The session gate guarantees a
// verified user is in the context by the time these run; a missing user means
// the route was left ungated and is treated as a server error.
type HomeHandlers struct {
	Sessions *service.SessionManager
	Logger   *slog.Logger
}

// Home renders the portal landing page.
// GET /.
func (h *HomeHandlers) Home(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "home")
}

// Page renders any other gated portal page; the shell is the same, the
// front-end owns the content below it.
// GET /<anything>.
func (h *HomeHandlers) Page(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, r.URL.Path)
}

func (h *HomeHandlers) render(w http.ResponseWriter, r *http.Request, page string) {
	user, ok := GetUserFromContext(r.Context())
	if !ok {
		h.Logger.ErrorContext(r.Context(), "gated page reached without a session", "path", r.URL.Path)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	data := homePageData{
		Name: user.FullName(),
		Role: string(user.Role),
		Mode: string(h.Sessions.Mode()),
		Page: page,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := homeTemplate.Execute(w, data); err != nil {
		h.Logger.ErrorContext(r.Context(), "portal page render failed", "error", err)
	}
}

type homePageData struct {
	Name string
	Role string
	Mode string
	Page string
}

var homeTemplate = template.Must(template.New("home").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>School portal</title>
</head>
<body>
<header>
<span>{{.Name}} ({{.Role}})</span>
<form method="post" action="/accounts/signout"><button type="submit">Sign out</button></form>
</header>
<main data-page="{{.Page}}" data-mode="{{.Mode}}"></main>
</body>
</html>
`))
