package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"realty_catalog/internal/app"
	"realty_catalog/internal/domain"
)

// maxBody caps write payloads.
const maxBody = 1 << 20

type Handlers struct {
	Q *app.QueryService
	P *app.PropertyService
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Route("/api", func(r chi.Router) {
		r.Route("/properties", func(r chi.Router) {
			r.Get("/", h.listProperties)
			r.Post("/", h.createProperty)
			r.Get("/ranges", h.ranges)
			r.Get("/filter-options", h.filterOptions)
			r.Get("/{id}", h.getProperty)
			r.Put("/{id}", h.updateProperty)
			r.Delete("/{id}", h.deleteProperty)
		})
		r.Get("/complexes", h.listComplexes)
		r.Get("/complexes/details", h.complexDetail)
		r.Get("/developers", h.listDevelopers)
		r.Get("/developers/{slug}", h.developerDetail)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps domain sentinels to problem responses. Unexpected errors
// are logged with the request's query and reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalid):
		writeProblem(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeProblem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn().Err(err).Str("path", r.URL.Path).Str("query", r.URL.RawQuery).Msg("request timed out")
		writeProblem(w, http.StatusGatewayTimeout, "Gateway Timeout", "")
	default:
		log.Error().Err(err).
			Str("path", r.URL.Path).
			Str("query", r.URL.RawQuery).
			Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeCached sends v with a weak ETag and short-circuits on If-None-Match.
func writeCached(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if body == nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
		return
	}
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	writeBody(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal response")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
		return
	}
	writeBody(w, status, body)
}

func writeBody(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

func decodeInput(w http.ResponseWriter, r *http.Request) (app.PropertyInput, bool) {
	var in app.PropertyInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&in); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", err.Error())
		return in, false
	}
	return in, true
}

/********** reads **********/

func (h *Handlers) listProperties(w http.ResponseWriter, r *http.Request) {
	out, err := h.Q.ListProperties(r.Context(), app.ParseListingQuery(r.URL.Query()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, out)
}

func (h *Handlers) ranges(w http.ResponseWriter, r *http.Request) {
	out, err := h.Q.Ranges(r.Context(), app.ParseScope(r.URL.Query()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, out)
}

func (h *Handlers) filterOptions(w http.ResponseWriter, r *http.Request) {
	out, err := h.Q.FilterOptions(r.Context(), app.ParseScope(r.URL.Query()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, out)
}

func (h *Handlers) getProperty(w http.ResponseWriter, r *http.Request) {
	out, err := h.Q.GetProperty(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, out)
}

func (h *Handlers) listComplexes(w http.ResponseWriter, r *http.Request) {
	out, err := h.Q.ListGroups(r.Context(), app.ParseListingQuery(r.URL.Query()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, out)
}

func (h *Handlers) complexDetail(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := h.Q.ComplexDetail(r.Context(), q.Get("developer"), q.Get("complex"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, out)
}

func (h *Handlers) listDevelopers(w http.ResponseWriter, r *http.Request) {
	out, err := h.Q.Developers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, map[string]any{"developers": out})
}

func (h *Handlers) developerDetail(w http.ResponseWriter, r *http.Request) {
	out, err := h.Q.DeveloperDetail(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, out)
}

/********** writes **********/

func (h *Handlers) createProperty(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeInput(w, r)
	if !ok {
		return
	}
	out, err := h.P.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/properties/"+out.ID)
	writeJSON(w, http.StatusCreated, out)
}

func (h *Handlers) updateProperty(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeInput(w, r)
	if !ok {
		return
	}
	out, err := h.P.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) deleteProperty(w http.ResponseWriter, r *http.Request) {
	out, err := h.P.Delete(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("updatedBy"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
