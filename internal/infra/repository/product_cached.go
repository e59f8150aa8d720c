package repository

import (
	"context"
	"log/slog"

	"storefront/internal/domain/model"
	"storefront/internal/infra/cache"
	repo "storefront/internal/repository"
)

// FindByIDだけread-throughでキャッシュする。キャッシュの失敗はDBに落とす
type CachedProductRepository struct {
	repo.ProductRepository
	cache cache.ProductCache
	log   *slog.Logger
}

func NewCachedProductRepository(inner repo.ProductRepository, c cache.ProductCache, log *slog.Logger) *CachedProductRepository {
	return &CachedProductRepository{ProductRepository: inner, cache: c, log: log}
}

func (r *CachedProductRepository) FindByID(ctx context.Context, id int64) (model.Product, error) {
	p, ok, err := r.cache.Get(ctx, id)
	if err != nil {
		r.log.Warn("product cache get failed", slog.Int64("product_id", id), slog.Any("error", err))
	}
	if ok {
		return p, nil
	}

	p, err = r.ProductRepository.FindByID(ctx, id)
	if err != nil {
		return model.Product{}, err
	}

	if err := r.cache.Set(ctx, p); err != nil {
		r.log.Warn("product cache set failed", slog.Int64("product_id", id), slog.Any("error", err))
	}
	return p, nil
}
