package db

import (
	"testing"

	"github.com/digitalsp/ai-rakugaki-app/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	g, err := Open("sqlite", "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := Migrate(g); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return g
}

func TestOpenUnsupportedDriver(t *testing.T) {
	if _, err := Open("oracle", "dsn"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestSeedTopicsIdempotent(t *testing.T) {
	g := newTestDB(t)

	if err := SeedTopics(g, DefaultTopics); err != nil {
		t.Fatalf("seed: %v", err)
	}
	var count int64
	g.Model(&models.Topic{}).Count(&count)
	if count != int64(len(DefaultTopics)) {
		t.Fatalf("topics = %d, want %d", count, len(DefaultTopics))
	}

	// повторный запуск ничего не добавляет
	if err := SeedTopics(g, DefaultTopics); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	g.Model(&models.Topic{}).Count(&count)
	if count != int64(len(DefaultTopics)) {
		t.Fatalf("reseed changed catalog: %d topics", count)
	}
}

func TestSeedTopicsAssignsIDs(t *testing.T) {
	g := newTestDB(t)
	if err := SeedTopics(g, []models.Topic{{Name: "cat", Prompt: "masterpiece, cat"}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	var topic models.Topic
	if err := g.First(&topic, "name = ?", "cat").Error; err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if topic.ID == "" {
		t.Fatal("seeded topic has empty id")
	}
}
