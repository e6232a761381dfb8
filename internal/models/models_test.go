package models

import (
	"errors"
	"testing"

	"github.com/desertthunder/musync/internal/shared"
)

func TestParsePlatformType(t *testing.T) {
	tc := []struct {
		in      string
		want    PlatformType
		wantErr bool
	}{
		{in: "spotify", want: Spotify},
		{in: "Spotify", want: Spotify},
		{in: "apple-music", want: AppleMusic},
		{in: "apple_music", want: AppleMusic},
		{in: "SoundCloud", want: SoundCloud},
		{in: "tidal", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePlatformType(tt.in)
			if tt.wantErr {
				if !errors.Is(err, shared.ErrUnknownPlatform) {
					t.Fatalf("expected ErrUnknownPlatform, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParsePlatformType(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestSongAddPlatforms(t *testing.T) {
	s := &Song{Platforms: []string{"a"}}

	if s.AddPlatforms("a") {
		t.Error("adding an existing tag should report no change")
	}
	if !s.AddPlatforms("b", "", "b") {
		t.Error("adding a new tag should report a change")
	}
	if len(s.Platforms) != 2 || !s.HasPlatform("b") {
		t.Errorf("unexpected platforms: %v", s.Platforms)
	}
}

func TestUserValidate(t *testing.T) {
	valid := User{Username: "alice", PasswordHash: "hash", Email: "alice@example.com"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid user, got %v", err)
	}

	for name, u := range map[string]User{
		"missing username": {PasswordHash: "hash", Email: "a@example.com"},
		"missing hash":     {Username: "alice", Email: "a@example.com"},
		"bad email":        {Username: "alice", PasswordHash: "hash", Email: "alice"},
	} {
		t.Run(name, func(t *testing.T) {
			if err := u.Validate(); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestSongValidate(t *testing.T) {
	t.Run("Blank title or artist", func(t *testing.T) {
		for _, s := range []Song{
			{UserID: "u1", Title: "Intro"},
			{UserID: "u1", Artist: "Unknown"},
			{UserID: "u1"},
		} {
			if err := s.Validate(); err != nil {
				t.Errorf("expected %q by %q to validate, got %v", s.Title, s.Artist, err)
			}
		}
	})

	t.Run("Missing user", func(t *testing.T) {
		s := Song{Title: "Intro", Artist: "X"}
		if err := s.Validate(); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}
