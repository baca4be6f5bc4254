package router

import (
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
)

// Route describes one mounted endpoint
type Route struct {
	Group  string
	Method string
	Path   string
}

type route struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// Group is a resource's routes under one prefix of the versioned API
type Group struct {
	name       string
	prefix     string
	middleware []gin.HandlerFunc
	routes     []route
}

// NewGroup creates a group; middleware applies to its routes only
func NewGroup(name, prefix string, middleware ...gin.HandlerFunc) *Group {
	return &Group{name: name, prefix: prefix, middleware: middleware}
}

// GET adds a GET route
func (g *Group) GET(relativePath string, handlers ...gin.HandlerFunc) *Group {
	return g.add(http.MethodGet, relativePath, handlers)
}

// POST adds a POST route
func (g *Group) POST(relativePath string, handlers ...gin.HandlerFunc) *Group {
	return g.add(http.MethodPost, relativePath, handlers)
}

func (g *Group) add(method, relativePath string, handlers []gin.HandlerFunc) *Group {
	g.routes = append(g.routes, route{method: method, path: relativePath, handlers: handlers})
	return g
}

// API mounts groups under /api/<version> behind shared middleware
type API struct {
	version    string
	middleware []gin.HandlerFunc
	groups     []*Group
}

// NewAPI creates an API for version, defaulting to v1
func NewAPI(version string, middleware ...gin.HandlerFunc) *API {
	if version == "" {
		version = "v1"
	}
	return &API{version: version, middleware: middleware}
}

// Add queues groups for mounting
func (a *API) Add(groups ...*Group) *API {
	a.groups = append(a.groups, groups...)
	return a
}

// Mount registers every queued route on engine and returns them
func (a *API) Mount(engine *gin.Engine) []Route {
	base := "/api/" + a.version
	api := engine.Group(base, a.middleware...)

	var mounted []Route
	for _, g := range a.groups {
		rg := api.Group(g.prefix, g.middleware...)
		for _, r := range g.routes {
			rg.Handle(r.method, r.path, r.handlers...)
			mounted = append(mounted, Route{
				Group:  g.name,
				Method: r.method,
				Path:   path.Join(base, g.prefix, r.path),
			})
		}
	}
	return mounted
}
