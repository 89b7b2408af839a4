package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/burrowhq/burrow/internal/model"
	"github.com/burrowhq/burrow/internal/service"
)

// HandleListExitNodes returns a handler for GET /api/v1/exit-nodes.
func HandleListExitNodes(cp *service.ControlPlaneService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pg, ok := parsePaginationOrWriteInvalid(w, r)
		if !ok {
			return
		}
		sorting, ok := parseSortingOrWriteInvalid(w, r, []string{"id", "name"}, "id", "asc")
		if !ok {
			return
		}
		nodes, err := cp.ListExitNodes(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		SortSlice(nodes, sorting, func(n model.ExitNode) string {
			if sorting.SortBy == "name" {
				return n.Name
			}
			return fmt.Sprintf("%020d", n.ID)
		})
		WritePage(w, http.StatusOK, nodes, pg)
	}
}

// HandleTraefikConfig returns a handler for
// GET /api/v1/exit-nodes/{id}/traefik-config.
//
// Query: site_types (comma-separated, default all), filter_namespace_domains,
// login_pages (default true), format (json|yaml). The response carries a
// strong ETag; a matching If-None-Match yields 304 with no body.
func HandleTraefikConfig(cp *service.ControlPlaneService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireIDPathParam(w, r, "id")
		if !ok {
			return
		}
		filterNamespaces, ok := parseBoolQueryOrWriteInvalid(w, r, "filter_namespace_domains")
		if !ok {
			return
		}
		loginPages, ok := parseBoolQueryOrWriteInvalid(w, r, "login_pages")
		if !ok {
			return
		}

		req := service.RenderRequest{
			ExitNodeID:               id,
			GenerateLoginPageRouters: true,
			Format:                   strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format"))),
		}
		for _, st := range ParseListQuery(r, "site_types") {
			req.SiteTypes = append(req.SiteTypes, model.SiteType(strings.ToLower(st)))
		}
		if filterNamespaces != nil {
			req.FilterOutNamespaceDomains = *filterNamespaces
		}
		if loginPages != nil {
			req.GenerateLoginPageRouters = *loginPages
		}

		rendered, err := cp.RenderConfig(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		h := w.Header()
		h.Set("ETag", rendered.ETag)
		h.Set("Cache-Control", "no-cache")
		if etagMatches(r.Header.Get("If-None-Match"), rendered.ETag) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		h.Set("Content-Type", rendered.ContentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(rendered.Body)
	}
}

// HandleTraefikConfigStatus returns a handler for
// GET /api/v1/exit-nodes/{id}/traefik-config/status.
func HandleTraefikConfigStatus(cp *service.ControlPlaneService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireIDPathParam(w, r, "id")
		if !ok {
			return
		}
		status, err := cp.GetRenderStatus(id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, status)
	}
}

// etagMatches implements the weak comparison If-None-Match uses.
func etagMatches(header, etag string) bool {
	if header == "" || etag == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" {
			return true
		}
		if strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
