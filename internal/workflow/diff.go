package workflow

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/srkgupta/dependency-track-gate/internal/bom"
	"github.com/srkgupta/dependency-track-gate/internal/dtrack"
	"github.com/srkgupta/dependency-track-gate/internal/model"
)

// DownloadBom stores the current BOM of the configured project at path.
func (r *Runner) DownloadBom(ctx context.Context, path string) error {
	project, err := r.FindProject(ctx)
	if err != nil {
		return err
	}
	data, err := r.service.DownloadBom(ctx, project.Id)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create BOM directory")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write BOM")
	}
	r.logger.Infow("Downloaded BOM", "project", project.String(), "path", path)
	return nil
}

// DiffWithRemote compares the BOM of the configured project with the local
// one at path. A project the server does not know is an empty baseline. The
// downloaded BOM is kept as JSON next to the local one with a "remote-"
// prefix.
func (r *Runner) DiffWithRemote(ctx context.Context, path string) (*bom.DiffResult, error) {
	local, err := bom.ReadInventory(path)
	if err != nil {
		return nil, err
	}

	var remote []model.Component
	project, err := r.FindProject(ctx)
	switch {
	case errors.Is(err, dtrack.ErrNotFound):
		r.logger.Infow("Project not found, diffing against an empty BOM",
			"name", r.config.ProjectName, "version", r.config.ProjectVersion)
	case err != nil:
		return nil, err
	default:
		data, err := r.service.DownloadBom(ctx, project.Id)
		if err != nil {
			return nil, err
		}
		base := filepath.Base(path)
		remotePath := filepath.Join(filepath.Dir(path), "remote-"+strings.TrimSuffix(base, filepath.Ext(base))+".json")
		if err := os.WriteFile(remotePath, data, 0o644); err != nil {
			return nil, errors.Wrap(err, "failed to store remote BOM")
		}
		remote, err = bom.ParseInventory(data)
		if err != nil {
			return nil, err
		}
	}

	return bom.Diff(remote, local), nil
}
