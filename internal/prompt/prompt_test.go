package prompt

import (
	"slices"
	"testing"
)

func TestRegistry_Get(t *testing.T) {
	t.Parallel()

	r := NewRegistry()

	tests := []struct {
		name       string
		promptType string
		wantType   string
	}{
		{name: "default", promptType: TypeDefault, wantType: TypeDefault},
		{name: "creative", promptType: TypeCreative, wantType: TypeCreative},
		{name: "technical", promptType: TypeTechnical, wantType: TypeTechnical},
		{name: "welcome", promptType: TypeWelcome, wantType: TypeWelcome},
		{name: "unknown falls back to default", promptType: "poetic", wantType: TypeDefault},
		{name: "empty falls back to default", promptType: "", wantType: TypeDefault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := r.Get(tt.promptType)
			if got == "" {
				t.Fatal("Get() returned empty prompt")
			}
			if want := r.Get(tt.wantType); got != want {
				t.Errorf("Get(%q) did not resolve to %q prompt", tt.promptType, tt.wantType)
			}
		})
	}
}

func TestRegistry_Types(t *testing.T) {
	t.Parallel()

	types := NewRegistry().Types()

	for _, want := range []string{TypeDefault, TypeCreative, TypeTechnical, TypeClarification, TypeError, TypeWelcome} {
		if !slices.Contains(types, want) {
			t.Errorf("Types() missing %q", want)
		}
	}
	if len(types) != 6 {
		t.Errorf("Types() returned %d entries, want 6", len(types))
	}
}
