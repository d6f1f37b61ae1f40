// Package main provides configuration loading for a run.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/openclaw/planweave/internal/config"
	"github.com/openclaw/planweave/internal/skills"
	"github.com/vinayprograms/agentkit/policy"
)

// workflow handles the configuration phase of a run.
type workflow struct {
	// Parsed from CLI (populated by kong)
	configPath    string
	policyPath    string
	workspacePath string

	// Loaded artifacts
	cfg     *config.Config
	pol     *policy.Policy
	catalog *skills.Catalog
}

// load loads config, policy, and the skill catalog.
func (w *workflow) load() error {
	if err := w.loadConfig(); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := w.loadPolicy(); err != nil {
		return fmt.Errorf("loading policy: %w", err)
	}
	if err := w.loadSkills(); err != nil {
		return fmt.Errorf("loading skills: %w", err)
	}
	return nil
}

// loadConfig loads and applies configuration.
func (w *workflow) loadConfig() error {
	var err error
	switch {
	case w.configPath != "":
		w.cfg, err = config.LoadFile(w.configPath)
	case fileMissing("planweave.toml"):
		w.cfg = config.Default()
	default:
		w.cfg, err = config.LoadFile("planweave.toml")
	}
	if err != nil {
		return err
	}

	// Apply CLI overrides
	if w.workspacePath != "" {
		w.cfg.Agent.Workspace = w.workspacePath
	}
	if w.cfg.Agent.Workspace == "" {
		w.cfg.Agent.Workspace, _ = os.Getwd()
	}
	if !filepath.IsAbs(w.cfg.Agent.Workspace) {
		w.cfg.Agent.Workspace, _ = filepath.Abs(w.cfg.Agent.Workspace)
	}
	return nil
}

// loadPolicy loads the tool policy file.
func (w *workflow) loadPolicy() error {
	var err error
	switch {
	case w.policyPath != "":
		w.pol, err = policy.LoadFile(w.policyPath)
	case fileMissing("policy.toml"):
		w.pol = policy.New()
	default:
		w.pol, err = policy.LoadFile("policy.toml")
	}
	if err != nil {
		return err
	}
	w.pol.Workspace = w.cfg.Agent.Workspace
	return nil
}

// fileMissing reports whether the default config or policy file is
// absent, as opposed to unreadable or malformed.
func fileMissing(path string) bool {
	_, err := os.Stat(path)
	return errors.Is(err, fs.ErrNotExist)
}

// loadSkills builds the skill catalog from the configured directories.
func (w *workflow) loadSkills() error {
	paths := w.cfg.Skills.Paths
	if len(paths) == 0 {
		defaultDir := filepath.Join(w.cfg.Agent.Workspace, "skills")
		if _, err := os.Stat(defaultDir); err == nil {
			paths = []string{defaultDir}
		}
	}
	var err error
	w.catalog, err = skills.NewCatalog(paths)
	return err
}
