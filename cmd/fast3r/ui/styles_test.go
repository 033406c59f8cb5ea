package ui

import "testing"

func TestDetectTheme(t *testing.T) {
	t.Setenv("COLORFGBG", "")
	t.Setenv("FAST3R_DARK_MODE", "0")
	if DetectTheme().IsDark {
		t.Fatalf("expected light theme when FAST3R_DARK_MODE=0")
	}

	t.Setenv("FAST3R_DARK_MODE", "")
	if !DetectTheme().IsDark {
		t.Fatalf("expected dark theme by default")
	}

	t.Setenv("COLORFGBG", "0;15")
	if DetectTheme().IsDark {
		t.Fatalf("expected light theme for a light terminal background")
	}
}

func TestRenderDividerWidth(t *testing.T) {
	s := NewStyles(LightTheme())
	if got := s.RenderDivider(0); got == "" {
		t.Fatalf("divider should never be empty")
	}
}
