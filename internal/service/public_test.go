package service

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/linkspark/internal/apperror"
	"github.com/sakif/linkspark/internal/model"
)

func TestResolve(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()
	store.CreateProfile(ctx, &model.Profile{UserID: "u1", Username: "alice", Bio: "hi", TemplateID: "neon"})
	store.CreateProfile(ctx, &model.Profile{UserID: "u2", Username: "bob", TemplateID: "pastel"})
	store.AddLink(ctx, &model.Link{UserID: "u2", Title: "second", URL: "https://b.example", Active: true})
	store.AddLink(ctx, &model.Link{UserID: "u2", Title: "hidden", URL: "https://h.example", Active: false})
	store.AddLink(ctx, &model.Link{UserID: "u2", Title: "third", URL: "https://c.example", Active: true})

	svc := NewPublicService(store, store, testLogger())

	tests := []struct {
		username  string
		wantState PublicState
		wantLinks []string
		wantTheme string
	}{
		{"alice", PublicNoLinks, nil, "neon"},
		{" Bob ", PublicOK, []string{"second", "third"}, "pastel"},
		{"carol", PublicNotFound, nil, "black_white"},
		{"no such user!", PublicNotFound, nil, "black_white"},
	}
	for _, tt := range tests {
		t.Run(tt.username, func(t *testing.T) {
			page, err := svc.Resolve(ctx, tt.username)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if page.State != tt.wantState {
				t.Errorf("State = %q, want %q", page.State, tt.wantState)
			}
			if page.Theme.ID != tt.wantTheme {
				t.Errorf("Theme = %q, want %q", page.Theme.ID, tt.wantTheme)
			}
			if len(page.Links) != len(tt.wantLinks) {
				t.Fatalf("got %d links, want %d", len(page.Links), len(tt.wantLinks))
			}
			for i, title := range tt.wantLinks {
				if page.Links[i].Title != title {
					t.Errorf("Links[%d] = %q, want %q", i, page.Links[i].Title, title)
				}
			}
		})
	}
}

func TestResolve_NoLinksKeepsProfile(t *testing.T) {
	store := newFakeStore()
	store.CreateProfile(context.Background(), &model.Profile{UserID: "u1", Username: "alice", Bio: "hi"})
	svc := NewPublicService(store, store, testLogger())

	page, err := svc.Resolve(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if page.Profile == nil || page.Profile.Bio != "hi" {
		t.Errorf("Profile = %+v, want bio hi", page.Profile)
	}
	if page.Links == nil {
		t.Error("Links is nil, want empty slice")
	}
}

func TestResolve_MissingUsername(t *testing.T) {
	svc := NewPublicService(newFakeStore(), newFakeStore(), testLogger())

	if _, err := svc.Resolve(context.Background(), "   "); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Resolve(blank) error = %v, want ErrValidation", err)
	}
}
