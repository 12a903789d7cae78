// Package handlers wires the forum HTTP surface: posts, comments and upvotes.
// Handlers translate between the JSON/form request surface and the store
// interfaces; all counter and vote semantics live in the store layer.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/forum-platform/internal/platform/auth"
	"github.com/example/forum-platform/services/forum/internal/store"
)

const maxBodyBytes = 1 << 20

// idParam parses the {id} route parameter. The second return is false when
// the parameter is missing or not an integer.
func idParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

// pageParams reads the shared pagination query surface. Unknown sort keys and
// out-of-range numbers fall back to the defaults instead of failing the
// request.
func pageParams(r *http.Request) store.PageParams {
	q := r.URL.Query()
	var p store.PageParams
	if v, err := strconv.Atoi(q.Get("page")); err == nil {
		p.Page = v
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		p.Limit = v
	}
	p.SortBy = q.Get("sortBy")
	p.Order = q.Get("order")
	return p.Normalize()
}

// viewerID returns the authenticated user's id, or "" for anonymous reads.
func viewerID(r *http.Request) string {
	u, _ := auth.UserFromContext(r.Context())
	return u.ID
}

// decodeBody binds named fields from a JSON or form-encoded request body.
// The web client submits forms; API consumers send JSON.
func decodeBody(w http.ResponseWriter, r *http.Request, fields map[string]*string) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body map[string]string
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
			return err
		}
		for name, dst := range fields {
			*dst = body[name]
		}
		return nil
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return err
	}
	for name, dst := range fields {
		*dst = r.PostFormValue(name)
	}
	return nil
}
