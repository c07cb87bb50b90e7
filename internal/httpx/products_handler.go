package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openshop/openshop/internal/apperr"
	"github.com/openshop/openshop/internal/products"
)

type ProductsHandler struct {
	Repo *products.Repo
}

func (h *ProductsHandler) Register(r *chi.Mux) {
	r.Get("/products", h.list)
	r.Post("/products", h.create)
}

func (h *ProductsHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Repo.List(ctx)
	if err != nil {
		writeErr(w, err)
		return
	}
	if ps == nil {
		ps = []products.Product{}
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *ProductsHandler) create(w http.ResponseWriter, r *http.Request) {
	var p products.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeErr(w, apperr.New(apperr.InvalidArgument, "invalid json"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	created, err := h.Repo.Create(ctx, &p)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}
