package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/linkspark/internal/apperror"
	"github.com/sakif/linkspark/internal/model"
)

func TestPlayerToken_SaveGetDelete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user, _ := registerTestUser(t, db, "alice@example.com", "alice")

	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	if err := db.SaveToken(ctx, &model.PlayerToken{
		UserID:       user.ID,
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		TokenType:    "Bearer",
		ExpiresAt:    expires,
	}); err != nil {
		t.Fatalf("SaveToken() error = %v", err)
	}

	got, err := db.GetToken(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetToken() error = %v", err)
	}
	if got.AccessToken != "access-1" || got.RefreshToken != "refresh-1" {
		t.Errorf("got %+v", got)
	}
	if !got.ExpiresAt.Equal(expires) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, expires)
	}

	if err := db.DeleteToken(ctx, user.ID); err != nil {
		t.Fatalf("DeleteToken() error = %v", err)
	}
	if _, err := db.GetToken(ctx, user.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetToken() after delete error = %v, want ErrNotFound", err)
	}
	if err := db.DeleteToken(ctx, user.ID); err != nil {
		t.Errorf("second DeleteToken() error = %v, want nil", err)
	}
}

func TestSaveToken_KeepsRefreshTokenWhenOmitted(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user, _ := registerTestUser(t, db, "alice@example.com", "alice")

	save := func(access, refresh string) {
		t.Helper()
		if err := db.SaveToken(ctx, &model.PlayerToken{
			UserID:       user.ID,
			AccessToken:  access,
			RefreshToken: refresh,
			ExpiresAt:    time.Now().Add(time.Hour),
		}); err != nil {
			t.Fatalf("SaveToken() error = %v", err)
		}
	}
	save("access-1", "refresh-1")
	save("access-2", "")

	got, err := db.GetToken(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetToken() error = %v", err)
	}
	if got.AccessToken != "access-2" {
		t.Errorf("AccessToken = %q, want access-2", got.AccessToken)
	}
	if got.RefreshToken != "refresh-1" {
		t.Errorf("RefreshToken = %q, want refresh-1 to survive", got.RefreshToken)
	}
}
