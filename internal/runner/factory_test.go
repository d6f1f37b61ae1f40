package runner

import (
	"strings"
	"testing"
)

func TestProfileFactory_UnknownProfile(t *testing.T) {
	factory := NewProfileFactory(testConfig(t))
	_, err := factory.GetProvider("no-such-profile")
	if err == nil || !strings.Contains(err.Error(), "unknown model profile") {
		t.Errorf("expected unknown-profile error, got %v", err)
	}
}

func TestProfileFactory_UnconfiguredModel(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.Model = ""
	factory := NewProfileFactory(cfg)
	if _, err := factory.GetProvider(""); err == nil {
		t.Error("expected error with no model configured")
	}
}

func TestProfileFactory_CachesProviders(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.Provider = "anthropic"
	cfg.LLM.Model = "claude-sonnet-4-20250514"
	t.Setenv("ANTHROPIC_API_KEY", "test-key")

	factory := NewProfileFactory(cfg)
	first, err := factory.GetProvider("")
	if err != nil {
		t.Fatalf("provider error: %v", err)
	}
	second, err := factory.GetProvider("")
	if err != nil {
		t.Fatalf("provider error: %v", err)
	}
	if first != second {
		t.Error("expected the cached provider on second call")
	}
}

func TestEnvironmentInfo(t *testing.T) {
	cfg := testConfig(t)
	info := environmentInfo(cfg, nil, nil)
	if !strings.Contains(info, "OS: ") {
		t.Errorf("expected OS line, got: %s", info)
	}
	if !strings.Contains(info, "Workspace: "+cfg.Agent.Workspace) {
		t.Errorf("expected workspace line, got: %s", info)
	}
}
