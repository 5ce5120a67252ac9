package httpapi

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"garnizon.org/internal/auth"
	"garnizon.org/internal/fault"
)

// RouteRequirement declares the permissions a route demands. Path
// templates support ":param" segments and "*" wildcards.
type RouteRequirement struct {
	Method   string
	Path     string
	Required []string
}

type compiledRoute struct {
	method   string
	pattern  *regexp.Regexp
	required []string
}

// PermissionTable is the immutable method+path → required-permission
// mapping. Patterns are compiled once at construction, never per request.
// Lookup tries an exact match first, then the compiled patterns in
// declaration order.
type PermissionTable struct {
	exact    map[string][]string
	patterns []compiledRoute
}

func NewPermissionTable(entries []RouteRequirement) (*PermissionTable, error) {
	t := &PermissionTable{exact: make(map[string][]string, len(entries))}
	for _, e := range entries {
		method := strings.ToUpper(strings.TrimSpace(e.Method))
		path := strings.TrimSpace(e.Path)
		if method == "" || path == "" {
			return nil, fmt.Errorf("httpapi: route requirement needs method and path, got %q %q", e.Method, e.Path)
		}
		if len(e.Required) == 0 {
			return nil, fmt.Errorf("httpapi: route %s %s has no required permissions", method, path)
		}
		required := append([]string{}, e.Required...)
		if !strings.ContainsAny(path, ":*") {
			t.exact[method+" "+path] = required
			continue
		}
		re, err := compilePathTemplate(path)
		if err != nil {
			return nil, fmt.Errorf("httpapi: compile route %s %s: %w", method, path, err)
		}
		t.patterns = append(t.patterns, compiledRoute{method: method, pattern: re, required: required})
	}
	return t, nil
}

// MustNewPermissionTable is NewPermissionTable that panics, for static
// tables built at process start.
func MustNewPermissionTable(entries []RouteRequirement) *PermissionTable {
	t, err := NewPermissionTable(entries)
	if err != nil {
		panic(err)
	}
	return t
}

// Required returns the permissions for (method, path) and whether the
// route is mapped at all.
func (t *PermissionTable) Required(method, path string) ([]string, bool) {
	if t == nil {
		return nil, false
	}
	method = strings.ToUpper(method)
	if required, ok := t.exact[method+" "+path]; ok {
		return required, true
	}
	for _, route := range t.patterns {
		if route.method == method && route.pattern.MatchString(path) {
			return route.required, true
		}
	}
	return nil, false
}

// compilePathTemplate turns "/classes/:id" into ^/classes/[^/]+$ and "*"
// segments into ".*".
func compilePathTemplate(template string) (*regexp.Regexp, error) {
	segments := strings.Split(template, "/")
	for i, seg := range segments {
		switch {
		case strings.HasPrefix(seg, ":"):
			segments[i] = "[^/]+"
		case seg == "*":
			segments[i] = ".*"
		default:
			segments[i] = regexp.QuoteMeta(seg)
		}
	}
	return regexp.Compile("^" + strings.Join(segments, "/") + "$")
}

// DefaultPermissionTable maps the management API's routes. Routes absent
// from the table are permission-open: they still require authentication
// but no specific permission.
func DefaultPermissionTable() *PermissionTable {
	return MustNewPermissionTable([]RouteRequirement{
		{Method: http.MethodPost, Path: "/classes", Required: []string{"classes:create"}},
		{Method: http.MethodPatch, Path: "/classes/:id", Required: []string{"classes:update"}},
		{Method: http.MethodDelete, Path: "/classes/:id", Required: []string{"classes:delete"}},
		{Method: http.MethodPost, Path: "/students", Required: []string{"students:create"}},
		{Method: http.MethodPatch, Path: "/students/:id", Required: []string{"students:update"}},
		{Method: http.MethodDelete, Path: "/students/:id", Required: []string{"students:delete"}},
		{Method: http.MethodPost, Path: "/units", Required: []string{"units:create"}},
		{Method: http.MethodPatch, Path: "/units/:id", Required: []string{"units:update"}},
		{Method: http.MethodDelete, Path: "/units/:id", Required: []string{"units:delete"}},
		{Method: http.MethodPost, Path: "/users", Required: []string{"users:create"}},
		{Method: http.MethodPatch, Path: "/users/:id", Required: []string{"users:update"}},
		{Method: http.MethodDelete, Path: "/users/:id", Required: []string{"users:delete"}},
		{Method: http.MethodPost, Path: "/roles", Required: []string{"roles:create"}},
		{Method: http.MethodPatch, Path: "/roles/:id", Required: []string{"roles:update"}},
		{Method: http.MethodDelete, Path: "/roles/:id", Required: []string{"roles:delete"}},
		{Method: http.MethodGet, Path: "/reports/*", Required: []string{"reports:read"}},
	})
}

// requirePermissions enforces the permission table. Unlike the scope
// stage this one fails closed: no identity means Unauthenticated. All
// listed permissions are required; missing any denies with the missing
// set in the message.
func (a *API) requirePermissions(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		data, ok := auth.AuthDataFromContext(r.Context())
		if !ok {
			respondError(w, r, fault.New(fault.Unauthenticated, "authentication required"))
			return
		}
		if data.IsSuperUser {
			next.ServeHTTP(w, r)
			return
		}

		required, mapped := a.perms.Required(r.Method, r.URL.Path)
		if !mapped {
			next.ServeHTTP(w, r)
			return
		}

		var missing []string
		for _, perm := range required {
			if !data.HasPermission(perm) {
				missing = append(missing, perm)
			}
		}
		if len(missing) > 0 {
			respondError(w, r, fault.Newf(fault.PermissionDenied,
				"missing permissions: %s", strings.Join(missing, ", ")))
			return
		}
		next.ServeHTTP(w, r)
	})
}
