package categories

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pkoziel/ogloszybko/internal/domain/model"
)

type Store interface {
	ListActive(ctx context.Context) ([]model.CategoryWithCount, error)
	Create(ctx context.Context, category model.Category) (model.Category, error)
	Count(ctx context.Context) (int, error)
}

type Service struct {
	store Store
	log   *zap.Logger
}

func NewService(store Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, log: log}
}

func (s *Service) List(ctx context.Context) ([]model.CategoryWithCount, error) {
	if s.store == nil {
		return nil, fmt.Errorf("categories store is nil")
	}
	return s.store.ListActive(ctx)
}

// EnsureDefaults seeds the category table on first boot. A non-empty table
// is left untouched.
func (s *Service) EnsureDefaults(ctx context.Context) error {
	if s.store == nil {
		return fmt.Errorf("categories store is nil")
	}

	count, err := s.store.Count(ctx)
	if err != nil {
		return fmt.Errorf("count categories: %w", err)
	}
	if count > 0 {
		return nil
	}

	for _, category := range defaultCategories() {
		if _, err := s.store.Create(ctx, category); err != nil {
			return fmt.Errorf("seed category %q: %w", category.Name, err)
		}
	}

	s.log.Info("default categories initialized", zap.Int("count", len(defaultCategories())))
	return nil
}

func defaultCategories() []model.Category {
	return []model.Category{
		{Name: "Motoryzacja", Slug: "motors", Icon: "fas fa-car", Description: "Samochody, motocykle, części samochodowe", IsActive: true, SortOrder: 1},
		{Name: "Nieruchomości", Slug: "real-estate", Icon: "fas fa-home", Description: "Mieszkania, domy, działki, wynajem", IsActive: true, SortOrder: 2},
		{Name: "Elektronika", Slug: "electronics", Icon: "fas fa-laptop", Description: "Komputery, telefony, sprzęt elektroniczny", IsActive: true, SortOrder: 3},
		{Name: "Moda", Slug: "fashion", Icon: "fas fa-tshirt", Description: "Odzież, obuwie, akcesoria", IsActive: true, SortOrder: 4},
		{Name: "Dom i Ogród", Slug: "home-garden", Icon: "fas fa-couch", Description: "Meble, wyposażenie domu, narzędzia ogrodnicze", IsActive: true, SortOrder: 5},
		{Name: "Praca", Slug: "jobs", Icon: "fas fa-briefcase", Description: "Oferty pracy, zlecenia", IsActive: true, SortOrder: 6},
		{Name: "Usługi", Slug: "services", Icon: "fas fa-tools", Description: "Usługi profesjonalne, naprawy", IsActive: true, SortOrder: 7},
		{Name: "Sport i Hobby", Slug: "sports-hobby", Icon: "fas fa-football-ball", Description: "Sprzęt sportowy, hobby, gry", IsActive: true, SortOrder: 8},
		{Name: "Kolekcje", Slug: "collectibles", Icon: "fas fa-gem", Description: "Antyki, sztuka, kolekcje", IsActive: true, SortOrder: 9},
		{Name: "Zwierzęta", Slug: "pets", Icon: "fas fa-paw", Description: "Zwierzęta, akcesoria dla zwierząt", IsActive: true, SortOrder: 10},
	}
}
