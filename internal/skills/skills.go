// Package skills provides the skill catalog: named, folder-defined
// capabilities a task can invoke. A skill is a directory containing
// SKILL.md with YAML frontmatter and markdown instructions.
package skills

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Skill is a loaded skill definition.
type Skill struct {
	// From frontmatter
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	License     string            `yaml:"license,omitempty"`
	Metadata    map[string]string `yaml:"metadata,omitempty"`

	// From content
	Instructions string `yaml:"-"`

	// Location
	Path string `yaml:"-"`
}

// Ref is a minimal reference for discovery.
type Ref struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Path        string `json:"path"`
}

// Model returns the skill's model override, if it declares one in its
// metadata. Empty means "use the caller's default".
func (s *Skill) Model() string {
	return s.Metadata["model"]
}

// Header returns the skill's frontmatter fields as a flat map.
func (s *Skill) Header() map[string]string {
	h := map[string]string{
		"name":        s.Name,
		"description": s.Description,
	}
	if s.License != "" {
		h["license"] = s.License
	}
	for k, v := range s.Metadata {
		h[k] = v
	}
	return h
}

// Definition returns the full prompt-ready definition text.
func (s *Skill) Definition() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Skill: %s\n%s\n\n", s.Name, s.Description)
	b.WriteString(s.Instructions)
	return strings.TrimSpace(b.String())
}

// Load loads a skill from a directory.
func Load(skillDir string) (*Skill, error) {
	content, err := os.ReadFile(filepath.Join(skillDir, "SKILL.md"))
	if err != nil {
		return nil, fmt.Errorf("failed to read SKILL.md: %w", err)
	}

	skill, err := Parse(string(content))
	if err != nil {
		return nil, err
	}
	skill.Path = skillDir

	if dirName := filepath.Base(skillDir); skill.Name != dirName {
		return nil, fmt.Errorf("skill name %q does not match directory name %q", skill.Name, dirName)
	}
	return skill, nil
}

// Parse parses SKILL.md content.
func Parse(content string) (*Skill, error) {
	frontmatter, body, err := splitFrontmatter(content)
	if err != nil {
		return nil, err
	}

	skill := &Skill{}
	if err := yaml.Unmarshal([]byte(frontmatter), skill); err != nil {
		return nil, fmt.Errorf("invalid frontmatter: %w", err)
	}

	if skill.Name == "" {
		return nil, fmt.Errorf("missing required field: name")
	}
	if skill.Description == "" {
		return nil, fmt.Errorf("missing required field: description")
	}
	if err := validateName(skill.Name); err != nil {
		return nil, err
	}

	skill.Instructions = strings.TrimSpace(body)
	return skill, nil
}

// splitFrontmatter extracts YAML frontmatter from markdown.
func splitFrontmatter(content string) (frontmatter, body string, err error) {
	lines := strings.Split(content, "\n")

	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return "", "", fmt.Errorf("missing frontmatter delimiter")
	}

	var fmLines []string
	var bodyStart int
	inFrontmatter := true

	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			inFrontmatter = false
			bodyStart = i + 1
			break
		}
		if inFrontmatter {
			fmLines = append(fmLines, lines[i])
		}
	}

	if inFrontmatter {
		return "", "", fmt.Errorf("unclosed frontmatter")
	}

	frontmatter = strings.Join(fmLines, "\n")
	if bodyStart < len(lines) {
		body = strings.Join(lines[bodyStart:], "\n")
	}
	return frontmatter, body, nil
}

// validateName enforces the skill naming rules.
func validateName(name string) error {
	if len(name) == 0 || len(name) > 64 {
		return fmt.Errorf("name must be 1-64 characters")
	}
	if strings.HasPrefix(name, "-") || strings.HasSuffix(name, "-") {
		return fmt.Errorf("name cannot start or end with hyphen")
	}
	if strings.Contains(name, "--") {
		return fmt.Errorf("name cannot contain consecutive hyphens")
	}
	for _, r := range name {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-') {
			return fmt.Errorf("name can only contain lowercase letters, numbers, and hyphens")
		}
	}
	return nil
}

// Discover finds all skill directories under skillsDir.
func Discover(skillsDir string) ([]Ref, error) {
	var refs []Ref

	entries, err := os.ReadDir(skillsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		skillPath := filepath.Join(skillsDir, entry.Name(), "SKILL.md")
		if _, err := os.Stat(skillPath); os.IsNotExist(err) {
			continue
		}
		ref, err := parseRef(skillPath)
		if err != nil {
			continue // skip invalid skills
		}
		ref.Path = filepath.Join(skillsDir, entry.Name())
		refs = append(refs, ref)
	}
	return refs, nil
}

// parseRef quickly parses just the frontmatter for discovery.
func parseRef(path string) (Ref, error) {
	f, err := os.Open(path)
	if err != nil {
		return Ref{}, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var inFrontmatter bool
	var fmLines []string

	for scanner.Scan() {
		trimmed := strings.TrimSpace(scanner.Text())
		if !inFrontmatter {
			if trimmed == "---" {
				inFrontmatter = true
			}
			continue
		}
		if trimmed == "---" {
			break
		}
		fmLines = append(fmLines, scanner.Text())
	}

	var ref Ref
	if err := yaml.Unmarshal([]byte(strings.Join(fmLines, "\n")), &ref); err != nil {
		return Ref{}, err
	}
	return ref, nil
}
