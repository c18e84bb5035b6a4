package httputil

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/BearBump/FreightLink/internal/derr"
	"github.com/go-chi/chi/v5"
)

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, err error) {
	WriteJSON(w, derr.HTTPStatus(err), map[string]string{"error": err.Error()})
}

// URLID — числовой path-параметр chi.
func URLID(r *http.Request, name string) (uint64, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, derr.InvalidState("invalid %s", name)
	}
	return id, nil
}

func DecodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return derr.InvalidState("invalid request body")
	}
	return nil
}
