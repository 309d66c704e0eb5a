// Package pages is the client route table: which page each path renders and which roles may see it.
package pages

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aura-webinar/portal/internal/models"
	"github.com/aura-webinar/portal/internal/session"
	"github.com/aura-webinar/portal/pkg/response"
)

// Redirect targets for the gate.
const (
	EntryPath        = "/"
	UnauthorizedPath = "/unauthorized"
)

// Route maps a path to a page. An empty Roles list means the page is public.
type Route struct {
	Path  string        `json:"path"`
	Page  string        `json:"page"`
	Roles []models.Role `json:"roles,omitempty"`
}

// Routes is the portal's route table.
var Routes = []Route{
	{Path: "/", Page: "home"},
	{Path: "/login", Page: "login"},
	{Path: "/signup", Page: "signup"},
	{Path: "/verify-otp", Page: "verify_otp"},
	{Path: "/webinars", Page: "webinars"},
	{Path: "/webinars/:id", Page: "webinar_detail"},
	{Path: "/unauthorized", Page: "unauthorized"},
	{Path: "/dashboard", Page: "dashboard", Roles: []models.Role{models.RoleUser, models.RoleAdmin}},
	{Path: "/dashboard/tickets", Page: "tickets", Roles: []models.Role{models.RoleUser, models.RoleAdmin}},
	{Path: "/payment/return", Page: "payment_return", Roles: []models.Role{models.RoleUser, models.RoleAdmin}},
	{Path: "/admin", Page: "admin_webinars", Roles: []models.Role{models.RoleAdmin}},
	{Path: "/admin/webinars/:id/applicants", Page: "admin_applicants", Roles: []models.Role{models.RoleAdmin}},
}

// PageView is what a page path renders: the page to mount, its params and the viewer.
type PageView struct {
	Page            string             `json:"page"`
	Path            string             `json:"path"`
	Params          map[string]string  `json:"params,omitempty"`
	Query           map[string]string  `json:"query,omitempty"`
	IsAuthenticated bool               `json:"isAuthenticated"`
	User            *models.UserPublic `json:"user,omitempty"`
}

// Decide returns the redirect target for a viewer on r, or "" when the page may render.
func Decide(r Route, s *session.Session) string {
	if len(r.Roles) == 0 {
		return ""
	}
	if !s.IsAuthenticated() {
		return EntryPath
	}
	for _, role := range r.Roles {
		if s.Role() == role {
			return ""
		}
	}
	return UnauthorizedPath
}

// Gate redirects viewers who may not see r.
func Gate(r Route) gin.HandlerFunc {
	return func(c *gin.Context) {
		if target := Decide(r, session.Current(c)); target != "" {
			c.Redirect(http.StatusFound, target)
			c.Abort()
			return
		}
		c.Next()
	}
}

// Render replies with the page view for r.
func Render(r Route) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := session.Current(c)
		view := PageView{Page: r.Page, Path: c.Request.URL.Path, IsAuthenticated: s.IsAuthenticated()}
		if view.IsAuthenticated {
			view.User = s.User
		}
		if len(c.Params) > 0 {
			view.Params = make(map[string]string, len(c.Params))
			for _, p := range c.Params {
				view.Params[p.Key] = p.Value
			}
		}
		if q := c.Request.URL.Query(); len(q) > 0 {
			view.Query = make(map[string]string, len(q))
			for k := range q {
				view.Query[k] = q.Get(k)
			}
		}
		response.OK(c, view)
	}
}

// Register mounts every route on g behind its gate.
func Register(g gin.IRoutes) {
	for _, r := range Routes {
		g.GET(r.Path, Gate(r), Render(r))
	}
}
