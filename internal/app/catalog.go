package app

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"campusmart/internal/util"
	"campusmart/pkg/domain"
	"campusmart/pkg/store"
)

// ProductInput is a listing as submitted by a seller.
type ProductInput struct {
	Title       string
	Description string
	Price       decimal.Decimal
	ImageURL    string
	Category    string
	SubCategory string
}

// maxPrice keeps prices inside the numeric(12,2) column.
var maxPrice = decimal.New(1, 10)

// AddProduct validates and stores a new listing owned by seller.
func (a *App) AddProduct(seller domain.User, in ProductInput) (domain.Product, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	in.Category = strings.TrimSpace(in.Category)
	in.SubCategory = strings.TrimSpace(in.SubCategory)
	if in.Title == "" || in.Description == "" || in.ImageURL == "" || in.Category == "" || in.SubCategory == "" {
		return domain.Product{}, ErrProductFieldsRequired
	}
	if !in.Price.IsPositive() || in.Price.GreaterThanOrEqual(maxPrice) {
		return domain.Product{}, ErrInvalidPrice
	}
	if !domain.IsCategory(in.Category) {
		return domain.Product{}, ErrInvalidCategory
	}
	if !domain.IsSubCategory(in.Category, in.SubCategory) {
		return domain.Product{}, ErrInvalidSubCategory
	}
	if existing, ok, err := a.store.GetProductByTitle(in.Title); err != nil {
		return domain.Product{}, err
	} else if ok {
		return domain.Product{}, &DuplicateTitleError{Existing: existing}
	}

	product := domain.Product{
		ID:          util.NewID(),
		Title:       in.Title,
		Description: in.Description,
		Price:       in.Price.Round(2),
		ImageURL:    in.ImageURL,
		Category:    in.Category,
		SubCategory: in.SubCategory,
		SellerEmail: seller.Email,
		CreatedAt:   a.now(),
	}
	if err := a.store.CreateProduct(product); err != nil {
		if errors.Is(err, store.ErrDuplicateTitle) {
			// Lost the race against a concurrent insert of the same title.
			existing, ok, lookupErr := a.store.GetProductByTitle(in.Title)
			if lookupErr == nil && ok {
				return domain.Product{}, &DuplicateTitleError{Existing: existing}
			}
			return domain.Product{}, &DuplicateTitleError{}
		}
		return domain.Product{}, err
	}
	return product, nil
}

// ListProducts returns the catalog, optionally narrowed by category and subcategory.
func (a *App) ListProducts(category, subCategory string) ([]domain.Product, error) {
	return a.store.ListProducts(store.ProductFilter{
		Category:    strings.TrimSpace(category),
		SubCategory: strings.TrimSpace(subCategory),
	})
}

func (a *App) GetProduct(id string) (domain.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, ErrProductIDRequired
	}
	p, ok, err := a.store.GetProduct(id)
	if err != nil {
		return domain.Product{}, err
	}
	if !ok {
		return domain.Product{}, ErrProductNotFound
	}
	return p, nil
}

// RemoveProduct deletes a listing. Only its seller or an admin may do so.
// Cart lines and order items pointing at it are left dangling.
func (a *App) RemoveProduct(actor domain.User, id string) error {
	p, err := a.GetProduct(id)
	if err != nil {
		return err
	}
	if p.SellerEmail != actor.Email && actor.Role != domain.RoleAdmin {
		return ErrNotProductSeller
	}
	deleted, err := a.store.DeleteProduct(p.ID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrProductNotFound
	}
	return nil
}

func (a *App) Categories() []domain.Category {
	return domain.Categories()
}
