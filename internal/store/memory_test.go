package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ayush/auth-gateway/internal/models"
)

func TestMemoryStore_UniqueEmail(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.CreateUser(ctx, &models.User{Name: "A", Email: "a@x.com", Username: "a1"}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	err := s.CreateUser(ctx, &models.User{Name: "B", Email: "a@x.com", Username: "b1"})
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("err = %v, want ErrDuplicateKey", err)
	}
}

func TestMemoryStore_AbsentOptionalFieldsDoNotCollide(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for _, email := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		if err := s.CreateUser(ctx, &models.User{Name: "N", Email: email}); err != nil {
			t.Fatalf("create %s: %v", email, err)
		}
	}

	if _, err := s.GetUserByGoogleID(ctx, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUserByGoogleID(\"\") err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_UniqueUsernameAndGoogleID(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.CreateUser(ctx, &models.User{Name: "A", Email: "a@x.com", Username: "a1", GoogleID: "g1"})

	if err := s.CreateUser(ctx, &models.User{Name: "B", Email: "b@x.com", Username: "a1"}); !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("username collision err = %v, want ErrDuplicateKey", err)
	}
	if err := s.CreateUser(ctx, &models.User{Name: "C", Email: "c@x.com", GoogleID: "g1"}); !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("googleId collision err = %v, want ErrDuplicateKey", err)
	}
}

func TestMemoryStore_ConcurrentCreateSameEmail(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		created  int
		conflict int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.CreateUser(ctx, &models.User{Name: "A", Email: "race@x.com"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, ErrDuplicateKey):
				conflict++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if created != 1 || conflict != 19 {
		t.Errorf("created=%d conflict=%d, want 1 and 19", created, conflict)
	}
}

func TestMemoryStore_LinkGoogleID(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	a := &models.User{Name: "A", Email: "a@x.com", PasswordHash: "h"}
	b := &models.User{Name: "B", Email: "b@x.com", GoogleID: "g-b"}
	s.CreateUser(ctx, a)
	s.CreateUser(ctx, b)

	if _, err := s.LinkGoogleID(ctx, a.ID, "g-b"); !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("link taken google id err = %v, want ErrDuplicateKey", err)
	}
	u, err := s.LinkGoogleID(ctx, a.ID, "g-a")
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	if u.GoogleID != "g-a" {
		t.Errorf("GoogleID = %q, want g-a", u.GoogleID)
	}
	if _, err := s.LinkGoogleID(ctx, a.ID, "g-other"); !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("relink err = %v, want ErrDuplicateKey", err)
	}
	if _, err := s.LinkGoogleID(ctx, "missing", "g-x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing user err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_ListUsersOmitsPasswordHash(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.CreateUser(ctx, &models.User{Name: "A", Email: "a@x.com", PasswordHash: "secret-hash"})

	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("len = %d, want 1", len(users))
	}
	if users[0].PasswordHash != "" {
		t.Error("password hash leaked from ListUsers")
	}

	stored, _ := s.GetUserByEmail(ctx, "a@x.com")
	if stored.PasswordHash != "secret-hash" {
		t.Error("ListUsers must not clear the stored hash")
	}
}

func TestNullableAndDeref(t *testing.T) {
	if nullable("") != nil {
		t.Error("nullable(\"\") should be nil")
	}
	if p := nullable("x"); p == nil || *p != "x" {
		t.Error("nullable(\"x\") should point at x")
	}
	if deref(nil) != "" || deref(nullable("y")) != "y" {
		t.Error("deref mismatch")
	}
}
