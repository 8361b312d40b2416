package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/akriventsev/sportstore/framework/core"
)

// TestEntity для тестирования
type TestEntity struct {
	IDField string `json:"id"`
	Name    string `json:"name"`
}

func (e TestEntity) ID() string {
	return e.IDField
}

func TestInMemoryRepository_Save(t *testing.T) {
	repo := NewInMemoryRepository[TestEntity](DefaultInMemoryConfig())
	ctx := context.Background()

	entity := TestEntity{IDField: "test-1", Name: "Test"}
	if err := repo.Save(ctx, entity); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func TestInMemoryRepository_Save_EmptyID(t *testing.T) {
	repo := NewInMemoryRepository[TestEntity](DefaultInMemoryConfig())

	err := repo.Save(context.Background(), TestEntity{Name: "Test"})
	if !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("Expected invalid argument, got %v", err)
	}
}

func TestInMemoryRepository_Save_Limit(t *testing.T) {
	repo := NewInMemoryRepository[TestEntity](InMemoryConfig{MaxEntities: 1})
	ctx := context.Background()

	if err := repo.Save(ctx, TestEntity{IDField: "test-1"}); err != nil {
		t.Fatalf("Failed to save entity: %v", err)
	}
	if err := repo.Save(ctx, TestEntity{IDField: "test-1", Name: "updated"}); err != nil {
		t.Errorf("Update of existing entity must not hit the limit: %v", err)
	}
	if err := repo.Save(ctx, TestEntity{IDField: "test-2"}); err == nil {
		t.Error("Expected limit error")
	}
}

func TestInMemoryRepository_FindByID(t *testing.T) {
	repo := NewInMemoryRepository[TestEntity](DefaultInMemoryConfig())
	ctx := context.Background()

	if err := repo.Save(ctx, TestEntity{IDField: "test-1", Name: "Test"}); err != nil {
		t.Fatalf("Failed to save entity: %v", err)
	}

	found, err := repo.FindByID(ctx, "test-1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if found.Name != "Test" {
		t.Errorf("Expected Name 'Test', got %s", found.Name)
	}
}

func TestInMemoryRepository_FindByID_NotFound(t *testing.T) {
	repo := NewInMemoryRepository[TestEntity](DefaultInMemoryConfig())

	_, err := repo.FindByID(context.Background(), "nonexistent")
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestInMemoryRepository_FindAll(t *testing.T) {
	repo := NewInMemoryRepository[TestEntity](DefaultInMemoryConfig())
	ctx := context.Background()

	for _, e := range []TestEntity{{IDField: "test-1"}, {IDField: "test-2"}} {
		if err := repo.Save(ctx, e); err != nil {
			t.Fatalf("Failed to save entity: %v", err)
		}
	}

	all, err := repo.FindAll(ctx)
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 entities, got %d", len(all))
	}
}

func TestInMemoryRepository_Delete(t *testing.T) {
	repo := NewInMemoryRepository[TestEntity](DefaultInMemoryConfig())
	ctx := context.Background()

	if err := repo.Save(ctx, TestEntity{IDField: "test-1"}); err != nil {
		t.Fatalf("Failed to save entity: %v", err)
	}
	if err := repo.Delete(ctx, "test-1"); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if _, err := repo.FindByID(ctx, "test-1"); err == nil {
		t.Error("Expected error after deletion")
	}
	if err := repo.Delete(ctx, "test-1"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Expected not found on second delete, got %v", err)
	}
}

func TestInMemoryRepository_FindAndCount(t *testing.T) {
	repo := NewInMemoryRepository[TestEntity](DefaultInMemoryConfig())
	ctx := context.Background()

	for _, e := range []TestEntity{{IDField: "test-1", Name: "Test1"}, {IDField: "test-2", Name: "Test2"}} {
		if err := repo.Save(ctx, e); err != nil {
			t.Fatalf("Failed to save entity: %v", err)
		}
	}

	results, err := repo.Find(ctx, func(e TestEntity) bool { return e.Name == "Test1" })
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(results) != 1 || results[0].ID() != "test-1" {
		t.Errorf("Unexpected results: %v", results)
	}

	count, _ := repo.Count(ctx)
	if count != 2 {
		t.Errorf("Expected count 2, got %d", count)
	}
}

func TestToDocument(t *testing.T) {
	doc, err := toDocument(TestEntity{IDField: "test-1", Name: "Мяч"})
	if err != nil {
		t.Fatalf("toDocument failed: %v", err)
	}
	if doc["name"] != "Мяч" {
		t.Errorf("Unexpected document: %v", doc)
	}
}
