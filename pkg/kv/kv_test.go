package kv_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"testing"

	"github.com/haivivi/wonderchat/pkg/kv"
)

func stores(t *testing.T) map[string]kv.Store {
	t.Helper()
	b, err := kv.OpenBadger(kv.BadgerOptions{
		InMemory: true,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return map[string]kv.Store{
		"memory": kv.NewMemory(),
		"badger": b,
	}
}

func keys(t *testing.T, s kv.Store, prefix kv.Key) []string {
	t.Helper()
	var out []string
	for e, err := range s.List(context.Background(), prefix) {
		if err != nil {
			t.Fatalf("List(%v): %v", prefix, err)
		}
		out = append(out, e.Key.String())
	}
	return out
}

func TestStore(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := kv.Key{"profile", "p1"}

			if _, err := s.Get(ctx, key); !errors.Is(err, kv.ErrNotFound) {
				t.Fatalf("Get missing: err = %v, want ErrNotFound", err)
			}
			if err := s.Set(ctx, key, []byte(`{"name":"Sam"}`)); err != nil {
				t.Fatalf("Set: %v", err)
			}
			got, err := s.Get(ctx, key)
			if err != nil || string(got) != `{"name":"Sam"}` {
				t.Fatalf("Get = %q, %v", got, err)
			}
			if err := s.Delete(ctx, key); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if err := s.Delete(ctx, key); err != nil {
				t.Fatalf("Delete twice: %v", err)
			}
			if _, err := s.Get(ctx, key); !errors.Is(err, kv.ErrNotFound) {
				t.Fatalf("Get after delete: err = %v", err)
			}
		})
	}
}

func TestListOrderAndBoundary(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			err := s.BatchSet(ctx, []kv.Entry{
				{Key: kv.Key{"transcript", "s1", "000002"}, Value: []byte("b")},
				{Key: kv.Key{"transcript", "s1", "000001"}, Value: []byte("a")},
				{Key: kv.Key{"transcript", "s10", "000001"}, Value: []byte("c")},
				{Key: kv.Key{"profile", "p1"}, Value: []byte("p")},
			})
			if err != nil {
				t.Fatalf("BatchSet: %v", err)
			}

			want := []string{"transcript:s1:000001", "transcript:s1:000002"}
			if got := keys(t, s, kv.Key{"transcript", "s1"}); !slices.Equal(got, want) {
				t.Errorf("List(transcript:s1) = %v, want %v", got, want)
			}
			if got := keys(t, s, nil); len(got) != 4 {
				t.Errorf("List(nil) = %v, want 4 keys", got)
			}
		})
	}
}

func TestListStopsEarly(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, id := range []string{"a", "b", "c"} {
				s.Set(ctx, kv.Key{"x", id}, []byte(id))
			}
			n := 0
			for range s.List(ctx, kv.Key{"x"}) {
				n++
				if n == 2 {
					break
				}
			}
			if n != 2 {
				t.Errorf("iterated %d entries, want 2", n)
			}
		})
	}
}

func TestInvalidKeys(t *testing.T) {
	tests := []kv.Key{
		nil,
		{""},
		{"profile", ""},
		{"profile", "a:b"},
	}
	for name, s := range stores(t) {
		for _, k := range tests {
			if err := s.Set(context.Background(), k, []byte("x")); !errors.Is(err, kv.ErrInvalidKey) {
				t.Errorf("%s: Set(%q) err = %v, want ErrInvalidKey", name, []string(k), err)
			}
		}
	}
}

func TestKeyAppend(t *testing.T) {
	base := kv.Key{"transcript"}
	a := base.Append("s1")
	b := base.Append("s2")
	if a.String() != "transcript:s1" || b.String() != "transcript:s2" {
		t.Errorf("Append = %v, %v", a, b)
	}
	if len(base) != 1 {
		t.Errorf("Append modified the receiver: %v", base)
	}
}

func TestOpenBadgerRequiresDir(t *testing.T) {
	if _, err := kv.OpenBadger(kv.BadgerOptions{}); err == nil {
		t.Error("OpenBadger without Dir succeeded")
	}
}
