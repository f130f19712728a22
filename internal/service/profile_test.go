package service

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/linkspark/internal/apperror"
	"github.com/sakif/linkspark/internal/model"
)

func newTestProfileService(t *testing.T) (*ProfileService, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	return NewProfileService(store, testLogger()), store
}

func TestProfileCreate(t *testing.T) {
	svc, _ := newTestProfileService(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, "user-1", "Bob")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if p.Username != "bob" || p.DisplayName != "Bob" {
		t.Errorf("Create() = %+v", p)
	}

	if _, err := svc.Create(ctx, "user-1", "bobby"); !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("second Create() error = %v, want ErrConflict", err)
	}
}

func TestProfileGet_HealsMissingProfile(t *testing.T) {
	svc, store := newTestProfileService(t)

	p, err := svc.Get(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p.TemplateID != "black_white" || p.Bio != DefaultBio {
		t.Errorf("healed profile = %+v, want defaults", p)
	}
	if _, ok := store.profiles["user-1"]; !ok {
		t.Error("healed profile was not stored")
	}
}

func TestProfileUpdate_ThenGetReturnsMergedFields(t *testing.T) {
	svc, _ := newTestProfileService(t)
	ctx := context.Background()
	if _, err := svc.Create(ctx, "user-1", "alice"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, err := svc.Update(ctx, "user-1", model.ProfileUpdate{
		Bio:        strPtr("  hi  "),
		TemplateID: strPtr("neon"),
		Socials:    &model.Socials{Instagram: "@alice", YouTube: "https://youtube.com/@alice"},
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := svc.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Bio != "hi" {
		t.Errorf("Bio = %q, want %q", got.Bio, "hi")
	}
	if got.TemplateID != "neon" {
		t.Errorf("TemplateID = %q, want neon", got.TemplateID)
	}
	if got.Username != "alice" || got.DisplayName != "Alice" {
		t.Errorf("untouched fields changed: %+v", got)
	}
	if got.Socials.Instagram != "alice" || got.Socials.YouTube != "https://youtube.com/@alice" {
		t.Errorf("Socials = %+v", got.Socials)
	}
}

func TestProfileUpdate_Username(t *testing.T) {
	svc, _ := newTestProfileService(t)
	ctx := context.Background()
	svc.Create(ctx, "user-1", "alice")
	svc.Create(ctx, "user-2", "bob")

	if _, err := svc.Update(ctx, "user-2", model.ProfileUpdate{Username: strPtr("Alice")}); !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("Update() to a taken username error = %v, want ErrConflict", err)
	}

	p, err := svc.Update(ctx, "user-1", model.ProfileUpdate{Username: strPtr("ALICE")})
	if err != nil {
		t.Fatalf("Update() to own username error = %v", err)
	}
	if p.Username != "alice" {
		t.Errorf("Username = %q", p.Username)
	}
}

func TestProfileUpdate_Validation(t *testing.T) {
	tests := []struct {
		name  string
		upd   model.ProfileUpdate
		field string
	}{
		{"bad username", model.ProfileUpdate{Username: strPtr("a!")}, "username"},
		{"unknown template", model.ProfileUpdate{TemplateID: strPtr("vaporwave")}, "templateId"},
		{"image not http", model.ProfileUpdate{ProfileImageURL: strPtr("javascript:alert(1)")}, "profileImageUrl"},
		{"embed not http", model.ProfileUpdate{Embed: strPtr("ftp://files.example/x")}, "embed"},
		{"handle with spaces", model.ProfileUpdate{Socials: &model.Socials{TikTok: "two words"}}, "socials.tiktok"},
	}

	svc, _ := newTestProfileService(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Update(context.Background(), "user-1", tt.upd)
			var appErr *apperror.AppError
			if !errors.As(err, &appErr) || !errors.Is(err, apperror.ErrValidation) {
				t.Fatalf("Update() error = %v, want validation error", err)
			}
			if appErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", appErr.Field, tt.field)
			}
		})
	}
}

func TestProfileUpdate_ClearingOptionalFields(t *testing.T) {
	svc, _ := newTestProfileService(t)
	ctx := context.Background()
	svc.Create(ctx, "user-1", "alice")

	p, err := svc.Update(ctx, "user-1", model.ProfileUpdate{Embed: strPtr(""), ProfileImageURL: strPtr("")})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if p.Embed != "" || p.ProfileImageURL != "" {
		t.Errorf("fields not cleared: %+v", p)
	}
}

func TestUsernameAvailable(t *testing.T) {
	svc, _ := newTestProfileService(t)
	ctx := context.Background()
	svc.Create(ctx, "user-1", "alice")

	tests := []struct {
		candidate string
		excluding string
		want      bool
	}{
		{"alice", "", false},
		{" ALICE ", "", false},
		{"alice", "user-1", true},
		{"bob", "", true},
	}
	for _, tt := range tests {
		got, err := svc.UsernameAvailable(ctx, tt.candidate, tt.excluding)
		if err != nil {
			t.Fatalf("UsernameAvailable(%q) error = %v", tt.candidate, err)
		}
		if got != tt.want {
			t.Errorf("UsernameAvailable(%q, %q) = %v, want %v", tt.candidate, tt.excluding, got, tt.want)
		}
	}

	if _, err := svc.UsernameAvailable(ctx, "x", ""); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("UsernameAvailable(invalid) error = %v, want ErrValidation", err)
	}
}

func TestDisplayNameFor(t *testing.T) {
	tests := map[string]string{
		"alice": "Alice",
		"_x":    "_x",
		"":      "",
		"émile": "Émile",
	}
	for in, want := range tests {
		if got := DisplayNameFor(in); got != want {
			t.Errorf("DisplayNameFor(%q) = %q, want %q", in, got, want)
		}
	}
}
