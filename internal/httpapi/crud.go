package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// The helpers below adapt store methods to handlers. Handlers read the
// entity id from the {id} URL parameter.

func createHandler[In, T any](fn func(context.Context, In) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in In
		if err := decode(w, r, &in); err != nil {
			writeError(w, err)
			return
		}
		out, err := fn(r.Context(), in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, out)
	}
}

func updateHandler[P, T any](fn func(context.Context, string, P) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch P
		if err := decode(w, r, &patch); err != nil {
			writeError(w, err)
			return
		}
		out, err := fn(r.Context(), chi.URLParam(r, "id"), patch)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getHandler[T any](fn func(context.Context, string) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := fn(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func listHandler[T any](fn func(context.Context) []T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, fn(r.Context()))
	}
}

func deleteHandler(fn func(context.Context, string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// actionHandler serves POST /{id}/<action> endpoints that take no body.
func actionHandler[T any](fn func(context.Context, string) (T, error)) http.HandlerFunc {
	return getHandler(fn)
}

type resource[T, P any] struct {
	create func(context.Context, T) (T, error)
	update func(context.Context, string, P) (T, error)
	remove func(context.Context, string) error
	get    func(context.Context, string) (T, error)
	list   http.HandlerFunc
}

func (res resource[T, P]) mount(r chi.Router) {
	r.Get("/", res.list)
	r.Post("/", createHandler(res.create))
	r.Get("/{id}", getHandler(res.get))
	r.Patch("/{id}", updateHandler(res.update))
	r.Delete("/{id}", deleteHandler(res.remove))
}
