package domain

import (
	"errors"
	"testing"
)

func TestParseResourceKind(t *testing.T) {
	cases := map[string]ResourceKind{
		"people": ResourcePeople,
		"films":  ResourceFilms,
	}
	for raw, want := range cases {
		got, err := ParseResourceKind(raw)
		if err != nil || got != want {
			t.Errorf("ParseResourceKind(%q) = %q, %v", raw, got, err)
		}
	}
	for _, raw := range []string{"", "planets", "person", "PEOPLE", "Films", " films "} {
		if _, err := ParseResourceKind(raw); !errors.Is(err, ErrInvalidResource) {
			t.Errorf("ParseResourceKind(%q): expected ErrInvalidResource, got %v", raw, err)
		}
	}
}

func TestResourceKindKeys(t *testing.T) {
	if ResourcePeople.QueryKey() != "name" || ResourceFilms.QueryKey() != "title" {
		t.Fatal("unexpected query keys")
	}
	if ResourcePeople.RelatedField() != "films" || ResourceFilms.RelatedField() != "characters" {
		t.Fatal("unexpected related fields")
	}
	if ResourceKind("planets").Valid() {
		t.Fatal("planets must not be valid")
	}
}
