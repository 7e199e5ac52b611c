package version

import (
	"strings"
	"testing"
)

func TestVersionCarriesFlag(t *testing.T) {
	if Flag != "" && !strings.Contains(Version, Flag) {
		t.Fatalf("version %q should carry the flag %q", Version, Flag)
	}
}
