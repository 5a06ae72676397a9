package store

import (
	"database/sql"
	"testing"

	"github.com/dukerupert/shelf/internal/database"
	"github.com/dukerupert/shelf/internal/model"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// seedOwner creates a household owned by a freshly assigned owner account.
func seedOwner(t *testing.T, s Stores, email string) (*model.User, *model.Household) {
	t.Helper()
	u, err := s.Users.Create(email)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	h, err := s.Households.Create("Household", u.ID)
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	ok, err := s.Users.Assign(u.ID, h.ID, model.RoleOwner, "Owner")
	if err != nil || !ok {
		t.Fatalf("assign owner: ok=%v err=%v", ok, err)
	}
	u, err = s.Users.GetByID(u.ID)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	return u, h
}
