package usecase

import (
	"context"
	"errors"
	"strings"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

type ProductUsecase struct {
	products  repo.ProductRepository
	validator InputValidator
}

// DI
func NewProductUsecase(products repo.ProductRepository, validator InputValidator) *ProductUsecase {
	return &ProductUsecase{products: products, validator: validator}
}

// GET /products/ の入力
type ListProductsInput struct {
	Page     int
	Size     int
	Location string
}

func (u *ProductUsecase) List(ctx context.Context, in ListProductsInput) (Page[model.Product], error) {
	page, size, err := normalizePaging(in.Page, in.Size)
	if err != nil {
		return Page[model.Product]{}, err
	}

	items, total, err := u.products.List(ctx, repo.ProductListQuery{
		Page:     page,
		Size:     size,
		Location: strings.TrimSpace(in.Location),
	})
	if err != nil {
		return Page[model.Product]{}, Unexpected(err)
	}
	return NewPage(items, total, page, size), nil
}

func (u *ProductUsecase) Get(ctx context.Context, productID int64) (model.Product, error) {
	if productID <= 0 {
		return model.Product{}, NotFound("Product not found")
	}
	p, err := u.products.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Product{}, NotFound("Product not found")
	}
	if err != nil {
		return model.Product{}, Unexpected(err)
	}
	return p, nil
}

type CreateProductInput struct {
	Title       string  `json:"title" validate:"required,max=255"`
	Description string  `json:"description" validate:"max=5000"`
	Price       float64 `json:"price" validate:"gte=0"`
	Location    string  `json:"location" validate:"required,max=100"`
}

// 管理者のみ（ロールはmiddlewareで見る）
func (u *ProductUsecase) Create(ctx context.Context, in CreateProductInput) (model.Product, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Location = strings.TrimSpace(in.Location)
	if err := validateInput(u.validator, in); err != nil {
		return model.Product{}, err
	}

	p, err := u.products.Create(ctx, model.Product{
		Title:       in.Title,
		Description: in.Description,
		Price:       in.Price,
		Location:    in.Location,
	})
	if err != nil {
		return model.Product{}, Unexpected(err)
	}
	return p, nil
}
