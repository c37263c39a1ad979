// Package publish commits a generated tile set; the orchestrator only sees
// the interface.
package publish

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
)

// Publisher takes a directory of generated tiles and a commit message.
type Publisher interface {
	Publish(ctx context.Context, tilesDir, message string) error
}

// Noop is the default: tile sets stay local.
type Noop struct{}

func (Noop) Publish(context.Context, string, string) error { return nil }

// Git stages the tiles directory and commits it in RepoDir.
type Git struct {
	RepoDir string
	log     *slog.Logger
}

func NewGit(repoDir string, log *slog.Logger) *Git {
	return &Git{RepoDir: repoDir, log: log}
}

func (g *Git) Publish(ctx context.Context, tilesDir, message string) error {
	for _, args := range [][]string{
		{"add", tilesDir},
		{"commit", "-m", message},
	} {
		cmd := exec.CommandContext(ctx, "git", args...)
		cmd.Dir = g.RepoDir
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("git %s: %w: %s", args[0], err, stderr.String())
		}
	}
	g.log.InfoContext(ctx, "tiles committed", "dir", tilesDir)
	return nil
}
