package services

import (
	"testing"
	"time"

	"filer-api/internal/models"
)

func TestCacheReturnsCopies(t *testing.T) {
	cs := NewCacheService(time.Minute, time.Minute)
	defer cs.Close()

	cs.Set(&models.ImageRecord{FileRecord: models.FileRecord{ID: "a", Name: "before"}})

	got, ok := cs.Get("a")
	if !ok {
		t.Fatal("expected cache hit")
	}
	got.Name = "mutated"

	again, _ := cs.Get("a")
	if again.Name != "before" {
		t.Errorf("cached record mutated through copy: %q", again.Name)
	}
}

func TestCacheExpiry(t *testing.T) {
	cs := NewCacheService(time.Millisecond, time.Hour)
	defer cs.Close()

	cs.Set(&models.ImageRecord{FileRecord: models.FileRecord{ID: "a"}})
	time.Sleep(5 * time.Millisecond)

	if _, ok := cs.Get("a"); ok {
		t.Error("expected expired entry to miss")
	}

	cs.removeExpired(time.Now())
	cs.mu.RLock()
	n := len(cs.cache)
	cs.mu.RUnlock()
	if n != 0 {
		t.Errorf("cache holds %d entries after cleanup", n)
	}
}

func TestCacheInvalidate(t *testing.T) {
	cs := NewCacheService(time.Minute, time.Minute)
	defer cs.Close()

	cs.Set(&models.ImageRecord{FileRecord: models.FileRecord{ID: "a"}})
	cs.Invalidate("a")

	if _, ok := cs.Get("a"); ok {
		t.Error("expected miss after Invalidate")
	}
}
