package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"campusmart/internal/app"
	"campusmart/internal/util"
	"campusmart/pkg/domain"
)

type productRequest struct {
	Title       string          `json:"title"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"imageUrl"`
	Image       string          `json:"image"`
	Category    string          `json:"category"`
	SubCategory string          `json:"subCategory"`
}

func (s *Server) handleProductAdd(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req productRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	product, err := s.app.AddProduct(user, app.ProductInput{
		Title:       firstNonEmpty(req.Title, req.Name),
		Description: req.Description,
		Price:       req.Price,
		ImageURL:    firstNonEmpty(req.ImageURL, req.Image),
		Category:    req.Category,
		SubCategory: req.SubCategory,
	})
	if err != nil {
		writeAppError(w, r, "product_add", err)
		return
	}
	util.LoggerFromContext(r.Context()).Info("product_listed", "product_id", product.ID, "user_id", user.ID)
	writeJSON(w, http.StatusCreated, product)
}

func (s *Server) handleProductList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	products, err := s.app.ListProducts(q.Get("category"), q.Get("subCategory"))
	if err != nil {
		writeAppError(w, r, "product_list", err)
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, s.app.Categories())
}

func (s *Server) handleProductByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/product/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	product, err := s.app.GetProduct(id)
	if err != nil {
		writeAppError(w, r, "product_get", err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (s *Server) handleProductRemove(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/product/remove/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, app.ErrProductIDRequired.Error())
		return
	}
	if err := s.app.RemoveProduct(user, id); err != nil {
		writeAppError(w, r, "product_remove", err)
		return
	}
	util.LoggerFromContext(r.Context()).Info("product_removed", "product_id", id, "user_id", user.ID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Product removed successfully"})
}
