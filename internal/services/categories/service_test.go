package categories

import (
	"context"
	"testing"

	"github.com/pkoziel/ogloszybko/internal/domain/model"
)

type fakeCategoryStore struct {
	created []model.Category
}

func (f *fakeCategoryStore) ListActive(_ context.Context) ([]model.CategoryWithCount, error) {
	items := make([]model.CategoryWithCount, 0, len(f.created))
	for _, category := range f.created {
		items = append(items, model.CategoryWithCount{Category: category})
	}
	return items, nil
}

func (f *fakeCategoryStore) Create(_ context.Context, category model.Category) (model.Category, error) {
	category.ID = int64(len(f.created) + 1)
	f.created = append(f.created, category)
	return category, nil
}

func (f *fakeCategoryStore) Count(_ context.Context) (int, error) {
	return len(f.created), nil
}

func TestEnsureDefaultsSeedsOnce(t *testing.T) {
	store := &fakeCategoryStore{}
	svc := NewService(store, nil)

	if err := svc.EnsureDefaults(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if len(store.created) != 10 {
		t.Fatalf("expected 10 default categories, got %d", len(store.created))
	}
	if store.created[0].Name != "Motoryzacja" || store.created[0].Slug != "motors" {
		t.Fatalf("unexpected first category: %+v", store.created[0])
	}

	if err := svc.EnsureDefaults(context.Background()); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	if len(store.created) != 10 {
		t.Fatalf("seeding must be idempotent, got %d categories", len(store.created))
	}
}
