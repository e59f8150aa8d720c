package handler

import (
	"net/http"

	"storefront/internal/domain/model"
	"storefront/internal/middleware"
	"storefront/internal/response"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /products のAPI
type ProductHandler struct {
	uc *usecase.ProductUsecase
}

// DI
func NewProductHandler(uc *usecase.ProductUsecase) *ProductHandler {
	return &ProductHandler{uc: uc}
}

// 商品のルートを登録（作成は管理者だけ）
func (h *ProductHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/products", h.list)
	e.GET("/products/", h.list)
	e.GET("/products/:id", h.detail)

	adminOnly := middleware.RequireRole(model.RoleAdmin)
	e.POST("/products", h.create, adminOnly)
	e.POST("/products/", h.create, adminOnly)
}

func (h *ProductHandler) list(c echo.Context) error {
	page, size, problems := pagingQuery(c)
	if len(problems) > 0 {
		return validationFailed(c, problems...)
	}

	out, err := h.uc.List(c.Request().Context(), usecase.ListProductsInput{
		Page:     page,
		Size:     size,
		Location: trimmedQuery(c, "location"),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, response.Success(out, "Products retrieved successfully"))
}

func (h *ProductHandler) detail(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return validationFailed(c, "product_id: must be an integer")
	}

	p, err := h.uc.Get(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, response.Success(p, "Product retrieved successfully"))
}

func (h *ProductHandler) create(c echo.Context) error {
	var in usecase.CreateProductInput
	if err := bindBody(c, &in); err != nil {
		return err
	}

	p, err := h.uc.Create(c.Request().Context(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, response.Success(p, "Product created successfully"))
}
