package version_test

import (
	"testing"

	"github.com/edumarques81/stellar-queue/internal/version"
)

func TestGetInfoUsesBuildVariables(t *testing.T) {
	info := version.GetInfo()
	if info.Name != version.Name || info.Version != version.Version {
		t.Errorf("Expected %s %s, got %+v", version.Name, version.Version, info)
	}
	if info.Version == "" {
		t.Error("Version should not be empty")
	}
}

func TestGetInfoKeepsLinkedCommit(t *testing.T) {
	saved := version.GitCommit
	version.GitCommit = "feedface"
	defer func() { version.GitCommit = saved }()

	if got := version.GetInfo().GitCommit; got != "feedface" {
		t.Errorf("Expected the linked commit to win, got %q", got)
	}
}

func TestInfoString(t *testing.T) {
	tests := []struct {
		name string
		info version.Info
		want string
	}{
		{"bare", version.Info{Name: "Stellar Queue", Version: "1.0.0"}, "Stellar Queue 1.0.0"},
		{"commit only", version.Info{Name: "Stellar Queue", Version: "1.0.0", GitCommit: "0123456789abcdef"},
			"Stellar Queue 1.0.0 (commit 0123456)"},
		{"short commit", version.Info{Name: "Stellar Queue", Version: "1.0.0", GitCommit: "abc"},
			"Stellar Queue 1.0.0 (commit abc)"},
		{"commit and time", version.Info{Name: "Stellar Queue", Version: "1.0.0", GitCommit: "0123456789abcdef", BuildTime: "2026-01-01"},
			"Stellar Queue 1.0.0 (commit 0123456, built 2026-01-01)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.String(); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestClient(t *testing.T) {
	info := version.Info{Name: "Stellar Queue", Version: "1.0.0", GitCommit: "0123456"}
	if got := info.Client(); got != "Stellar Queue 1.0.0" {
		t.Errorf("Expected client id 'Stellar Queue 1.0.0', got %q", got)
	}
}
