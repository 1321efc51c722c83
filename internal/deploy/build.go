package deploy

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rileyhilliard/sitepush/internal/config"
	"github.com/rileyhilliard/sitepush/internal/errors"
	"github.com/rileyhilliard/sitepush/internal/exec"
)

// stderrTail is how much command stderr is kept to explain a failure.
const stderrTail = 4096

func (d *Deployer) since(t time.Time) time.Duration {
	return d.now().Sub(t)
}

// build runs the build command with inherited output, then checks that the
// build directory exists.
func (d *Deployer) build(ctx context.Context, cfg *config.DeployConfig, res *Result) error {
	start := d.now()
	d.display.CommandPrompt(cfg.BuildCommand)

	tail := exec.NewTailBuffer(stderrTail)
	code, err := d.shell.Run(ctx, cfg.BuildCommand, d.workDir, d.stdout, io.MultiWriter(d.stderr, tail))
	res.timed("build", d.since(start))
	if err != nil {
		d.display.RenderFailed("Build failed", d.since(start))
		return err
	}
	if code != 0 {
		d.display.RenderFailed("Build failed", d.since(start))
		suggestion := fmt.Sprintf("Check the build output above. Run '%s' by hand to reproduce.", cfg.BuildCommand)
		if hint, ok := exec.NotFoundHint(cfg.BuildCommand, tail.String(), code, "locally"); ok {
			suggestion = hint
		}
		return errors.New(errors.ErrBuild,
			fmt.Sprintf("Build command exited with code %d", code),
			suggestion)
	}

	dir := d.buildDirPath(cfg)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		d.display.RenderFailed("Build output missing", d.since(start))
		return errors.New(errors.ErrBuildOutput,
			fmt.Sprintf("Build finished but '%s' isn't a directory", cfg.BuildDir),
			"Point --build-dir at the directory your build writes to.")
	}

	d.display.RenderSuccess("Built "+cfg.BuildDir, d.since(start))
	return nil
}

// buildDirPath resolves BuildDir against the working directory.
func (d *Deployer) buildDirPath(cfg *config.DeployConfig) string {
	if filepath.IsAbs(cfg.BuildDir) || d.workDir == "" {
		return cfg.BuildDir
	}
	return filepath.Join(d.workDir, cfg.BuildDir)
}
