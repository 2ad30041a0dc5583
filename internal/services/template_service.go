package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/clinicore/scale-assessment-service/internal/cache"
	"github.com/clinicore/scale-assessment-service/internal/models"
	"github.com/clinicore/scale-assessment-service/internal/repositories"
	"github.com/clinicore/scale-assessment-service/internal/scoring"
)

type templateService struct {
	repo     repositories.TemplateRepository
	cache    cache.CacheService
	cacheTTL time.Duration
	logger   *slog.Logger
}

func NewTemplateService(repo repositories.TemplateRepository, cacheService cache.CacheService, cacheTTL time.Duration, logger *slog.Logger) TemplateService {
	return &templateService{
		repo:     repo,
		cache:    cacheService,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

func templateCacheKey(id string) string {
	return fmt.Sprintf("scale_template:%s", id)
}

// GetByID loads a full template through the cache. Templates are immutable
// once published, so a cached copy never goes stale within its TTL.
func (s *templateService) GetByID(ctx context.Context, id string) (*models.ScaleTemplate, error) {
	key := templateCacheKey(id)

	var cached models.ScaleTemplate
	err := s.cache.Get(ctx, key, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("Template cache read failed, falling back to store", "template_id", id, "error", err)
	}

	template, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	// Surface authoring defects early rather than at scoring time
	if err := scoring.CheckRuleCoverage(template); err != nil {
		s.logger.Warn("Template interpretation rules have coverage defects", "template_id", id, "error", err)
	}

	if err := s.cache.Set(ctx, key, template, s.cacheTTL); err != nil {
		s.logger.Warn("Failed to cache template", "template_id", id, "error", err)
	}

	return template, nil
}

func (s *templateService) GetMetadata(ctx context.Context, id string) (*models.TemplateMetadata, error) {
	metadata, err := s.repo.GetMetadata(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to get template metadata: %w", err)
	}
	return metadata, nil
}

func (s *templateService) List(ctx context.Context, filters repositories.TemplateFilters) (*TemplateListResponse, error) {
	templates, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	return &TemplateListResponse{
		Templates: templates,
		Total:     total,
		Limit:     filters.Limit,
		Offset:    filters.Offset,
	}, nil
}

func (s *templateService) ListCategories(ctx context.Context) ([]repositories.CategoryCount, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

func (s *templateService) Search(ctx context.Context, query string, limit int) ([]*models.TemplateMetadata, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: search query is required", ErrBadRequest)
	}

	templates, err := s.repo.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search templates: %w", err)
	}
	return templates, nil
}
