package runner

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// resultAnchorSuffix marks cross-task references: "#<slug>-results"
// resolves to the named task's result summary.
const resultAnchorSuffix = "-results"

// resolver implements plan.Resolver for the runner's workspace.
type resolver struct {
	runner    *Runner
	workspace string

	// Fetch retrieves remote references. Defaults to a plain HTTP GET;
	// tests replace it.
	Fetch func(ctx context.Context, url string) (string, error)
}

// ReferenceContent resolves one reference href: result anchors against
// the current plan, absolute paths against the workspace, URLs through
// the fetcher.
func (r *resolver) ReferenceContent(ctx context.Context, href string) (string, error) {
	switch {
	case strings.HasPrefix(href, "#"):
		return r.resolveAnchor(href)
	case strings.HasPrefix(href, "http://"), strings.HasPrefix(href, "https://"):
		fetch := r.Fetch
		if fetch == nil {
			fetch = httpFetch
		}
		return fetch(ctx, href)
	case filepath.IsAbs(href), strings.HasPrefix(href, "file://"):
		return r.readFile(strings.TrimPrefix(href, "file://"))
	default:
		return "", fmt.Errorf("unsupported reference %q", href)
	}
}

// resolveAnchor resolves "#<slug>-results" to a completed task's result.
func (r *resolver) resolveAnchor(href string) (string, error) {
	anchor := strings.TrimPrefix(href, "#")
	if !strings.HasSuffix(anchor, resultAnchorSuffix) {
		return "", fmt.Errorf("unknown anchor %q", href)
	}
	slug := strings.TrimSuffix(anchor, resultAnchorSuffix)

	pl := r.runner.Plan()
	if pl == nil {
		return "", fmt.Errorf("no plan to resolve %q against", href)
	}
	task := pl.TaskBySlug(slug)
	if task == nil {
		return "", fmt.Errorf("no task matches %q", href)
	}
	if !task.ExecDone() {
		return "", fmt.Errorf("task %q has not produced results yet", task.Name())
	}
	return task.Result(), nil
}

// readFile reads an absolute path, confined to the workspace when one
// is configured.
func (r *resolver) readFile(path string) (string, error) {
	clean := filepath.Clean(path)
	if r.workspace != "" {
		ws := filepath.Clean(r.workspace)
		if clean != ws && !strings.HasPrefix(clean, ws+string(filepath.Separator)) {
			return "", fmt.Errorf("reference %q is outside the workspace", path)
		}
	}
	content, err := os.ReadFile(clean)
	if err != nil {
		return "", fmt.Errorf("reading reference: %w", err)
	}
	return string(content), nil
}

func httpFetch(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %s: HTTP %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	return string(body), nil
}
