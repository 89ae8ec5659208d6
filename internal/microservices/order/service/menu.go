package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"restaurant-ordering/internal/common/logger"
	"restaurant-ordering/internal/domain"
	"restaurant-ordering/internal/repository"
)

const (
	MaxImageBytes = 5 << 20
	maxNameLen    = 100
	uploadsPrefix = "/uploads/"
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

type MenuServiceInterface interface {
	List(ctx context.Context, f repository.MenuFilter) ([]domain.MenuItem, error)
	Get(ctx context.Context, id string) (domain.MenuItem, error)
	Create(ctx context.Context, req domain.CreateMenuItemRequest) (domain.MenuItem, error)
	Update(ctx context.Context, id string, req domain.UpdateMenuItemRequest) (domain.MenuItem, error)
	Delete(ctx context.Context, id string) error
	UploadImage(ctx context.Context, id string, r io.Reader) (domain.MenuItem, error)
}

type MenuService struct {
	store     repository.MenuRepository
	uploadDir string
	lg        *logger.Logger
	now       func() time.Time
}

func NewMenuService(store repository.MenuRepository, uploadDir string, lg *logger.Logger) *MenuService {
	return &MenuService{store: store, uploadDir: uploadDir, lg: lg, now: func() time.Time { return time.Now().UTC() }}
}

func (s *MenuService) List(ctx context.Context, f repository.MenuFilter) ([]domain.MenuItem, error) {
	return s.store.ListMenu(ctx, f)
}

func (s *MenuService) Get(ctx context.Context, id string) (domain.MenuItem, error) {
	return s.store.GetMenuItem(ctx, id)
}

func (s *MenuService) Create(ctx context.Context, req domain.CreateMenuItemRequest) (domain.MenuItem, error) {
	now := s.now()
	item := domain.MenuItem{
		ID:          strings.TrimSpace(req.ID),
		Name:        strings.TrimSpace(req.Name),
		Price:       req.Price,
		Category:    strings.TrimSpace(req.Category),
		Image:       req.Image,
		Description: req.Description,
		Tags:        cleanTags(req.Tags),
		Available:   true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if req.Available != nil {
		item.Available = *req.Available
	}
	if err := validateMenuItem(item); err != nil {
		return domain.MenuItem{}, err
	}
	if err := s.store.CreateMenuItem(ctx, item); err != nil {
		return domain.MenuItem{}, err
	}
	s.lg.Ctx(ctx).Info("menu_item_created", map[string]any{"menu_item_id": item.ID, "name": item.Name})
	return item, nil
}

func (s *MenuService) Update(ctx context.Context, id string, req domain.UpdateMenuItemRequest) (domain.MenuItem, error) {
	item, err := s.store.GetMenuItem(ctx, id)
	if err != nil {
		return domain.MenuItem{}, err
	}
	if req.Name != nil {
		item.Name = strings.TrimSpace(*req.Name)
	}
	if req.Price != nil {
		item.Price = *req.Price
	}
	if req.Category != nil {
		item.Category = strings.TrimSpace(*req.Category)
	}
	if req.Image != nil {
		item.Image = *req.Image
	}
	if req.Description != nil {
		item.Description = *req.Description
	}
	if req.Tags != nil {
		item.Tags = cleanTags(req.Tags)
	}
	if req.Available != nil {
		item.Available = *req.Available
	}
	if err := validateMenuItem(item); err != nil {
		return domain.MenuItem{}, err
	}
	item.UpdatedAt = s.now()
	if err := s.store.UpdateMenuItem(ctx, item); err != nil {
		return domain.MenuItem{}, err
	}
	s.lg.Ctx(ctx).Info("menu_item_updated", map[string]any{"menu_item_id": item.ID})
	return item, nil
}

func (s *MenuService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteMenuItem(ctx, id); err != nil {
		return err
	}
	s.lg.Ctx(ctx).Info("menu_item_deleted", map[string]any{"menu_item_id": id})
	return nil
}

// UploadImage sniffs the content, stores it under the upload dir and points
// the item's image at the public /uploads/ path.
func (s *MenuService) UploadImage(ctx context.Context, id string, r io.Reader) (domain.MenuItem, error) {
	item, err := s.store.GetMenuItem(ctx, id)
	if err != nil {
		return domain.MenuItem{}, err
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxImageBytes+1))
	if err != nil {
		return domain.MenuItem{}, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return domain.MenuItem{}, domain.NewValidationError("image", "file is empty")
	}
	if len(data) > MaxImageBytes {
		return domain.MenuItem{}, domain.NewValidationError("image", "file is larger than 5 MiB")
	}
	mt := mimetype.Detect(data)
	if !allowedImageTypes[mt.String()] {
		return domain.MenuItem{}, domain.NewValidationError("image", fmt.Sprintf("unsupported content type %s", mt.String()))
	}

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return domain.MenuItem{}, fmt.Errorf("create upload dir: %w", err)
	}
	name := item.ID + "-" + uuid.NewString()[:8] + mt.Extension()
	dst, err := os.Create(filepath.Join(s.uploadDir, name))
	if err != nil {
		return domain.MenuItem{}, fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(dst, bytes.NewReader(data)); err != nil {
		dst.Close()
		return domain.MenuItem{}, fmt.Errorf("write upload file: %w", err)
	}
	if err := dst.Close(); err != nil {
		return domain.MenuItem{}, fmt.Errorf("write upload file: %w", err)
	}

	previous := item.Image
	item.Image = uploadsPrefix + name
	item.UpdatedAt = s.now()
	if err := s.store.UpdateMenuItem(ctx, item); err != nil {
		_ = os.Remove(filepath.Join(s.uploadDir, name))
		return domain.MenuItem{}, err
	}
	if strings.HasPrefix(previous, uploadsPrefix) {
		_ = os.Remove(filepath.Join(s.uploadDir, strings.TrimPrefix(previous, uploadsPrefix)))
	}
	s.lg.Ctx(ctx).Info("menu_image_uploaded", map[string]any{
		"menu_item_id": item.ID, "content_type": mt.String(), "bytes": len(data),
	})
	return item, nil
}

func validateMenuItem(it domain.MenuItem) error {
	if it.Name == "" {
		return domain.NewValidationError("name", "name is required")
	}
	if len([]rune(it.Name)) > maxNameLen {
		return domain.NewValidationError("name", fmt.Sprintf("name must be at most %d characters", maxNameLen))
	}
	if !it.Price.GreaterThan(decimal.Zero) {
		return domain.NewValidationError("price", "price must be greater than 0")
	}
	if !it.Price.Equal(it.Price.Round(2)) {
		return domain.NewValidationError("price", "price must have at most 2 decimal places")
	}
	if it.Category == "" {
		return domain.NewValidationError("category", "category is required")
	}
	return nil
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
