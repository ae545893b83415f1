package live

import (
	"context"
	"errors"
	"testing"
)

func TestRegistryReturnsSameSession(t *testing.T) {
	reg := NewRegistry(NopChannel{}, nil)

	a := reg.Session("runner-1")
	b := reg.Session("runner-1")
	if a != b {
		t.Fatalf("expected the same session for one participant")
	}

	other := reg.Session("runner-2")
	if other == a {
		t.Fatalf("expected distinct sessions per participant")
	}
}

func TestRegistryEmptyIDSessionCannotStart(t *testing.T) {
	reg := NewRegistry(NopChannel{}, nil)

	s := reg.Session("")
	if err := s.Start(context.Background(), "route", nil); !errors.Is(err, ErrNoIdentity) {
		t.Fatalf("expected ErrNoIdentity, got %v", err)
	}
}
