package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemorySetNX(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	ok, err := m.SetNX(ctx, "marker", "1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first SetNX = (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = m.SetNX(ctx, "marker", "1", time.Minute)
	if err != nil || ok {
		t.Fatalf("second SetNX = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestMemoryHIncrBy(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	if _, err := m.HIncrBy(ctx, "h", "n", 3); err != nil {
		t.Fatalf("HIncrBy: %v", err)
	}
	got, err := m.HIncrBy(ctx, "h", "n", 4)
	if err != nil {
		t.Fatalf("HIncrBy: %v", err)
	}
	if got != 7 {
		t.Errorf("HIncrBy total = %d, want 7", got)
	}
}

func TestMemoryUpdateAppliesAtomically(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	err := m.Update(ctx, func(tx Tx) error {
		tx.Set("a", "1")
		tx.Set("b", "2")
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	for key, want := range map[string]string{"a": "1", "b": "2"} {
		got, err := m.Get(ctx, key)
		if err != nil || got != want {
			t.Errorf("Get(%s) = (%q, %v), want %q", key, got, err, want)
		}
	}
}

func TestMemoryUpdateDiscardsOnCallbackError(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	boom := errors.New("boom")

	err := m.Update(ctx, func(tx Tx) error {
		tx.Set("a", "1")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update err = %v, want boom", err)
	}
	if _, err := m.Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after failed Update = %v, want ErrNotFound", err)
	}
}

func TestMemoryUpdateConflictsOnWatchedWrite(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	if err := m.Set(ctx, "index", "0"); err != nil {
		t.Fatal(err)
	}

	err := m.Update(ctx, func(tx Tx) error {
		if _, err := tx.Get(ctx, "index"); err != nil {
			return err
		}
		// Another process writes the watched key mid-transaction.
		if err := m.Set(ctx, "index", "0"); err != nil {
			return err
		}
		tx.Incr("index")
		return nil
	}, "index")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("Update err = %v, want ErrConflict", err)
	}
	got, _ := m.Get(ctx, "index")
	if got != "0" {
		t.Errorf("index after conflicted Update = %q, want unchanged %q", got, "0")
	}
}

func TestMemoryUpdateUnwatchedKeysDoNotConflict(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	err := m.Update(ctx, func(tx Tx) error {
		if err := m.Set(ctx, "other", "x"); err != nil {
			return err
		}
		tx.Set("index", "1")
		return nil
	}, "index")
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
}

func TestMemoryFailOp(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	m.FailOp("get", ErrUnavailable)

	if _, err := m.Get(ctx, "k"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Get = %v, want ErrUnavailable", err)
	}

	m.FailOp("get", nil)
	if _, err := m.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after clearing failure = %v, want ErrNotFound", err)
	}
}

func TestMemoryDelClearsAllShapes(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	m.Set(ctx, "s", "v")
	m.HSet(ctx, "h", map[string]string{"f": "v"})
	m.SAdd(ctx, "set", "m")

	if err := m.Del(ctx, "s", "h", "set"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, err := m.Get(ctx, "s"); !errors.Is(err, ErrNotFound) {
		t.Error("scalar survived Del")
	}
	if _, err := m.HGetAll(ctx, "h"); !errors.Is(err, ErrNotFound) {
		t.Error("hash survived Del")
	}
	if n, _ := m.SCard(ctx, "set"); n != 0 {
		t.Error("set survived Del")
	}
}
