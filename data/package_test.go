package data

import "testing"

func TestStatusMaintained(t *testing.T) {
	maintained := []Status{StatusActive, StatusHelpWanted}
	for _, s := range maintained {
		if !s.Maintained() {
			t.Errorf("expected %q to be maintained", s)
		}
	}

	unmaintained := []Status{StatusDeprecated, StatusRemoved, StatusUnmaintained, StatusHidden}
	for _, s := range unmaintained {
		if s.Maintained() {
			t.Errorf("expected %q to not be maintained", s)
		}
	}
}
