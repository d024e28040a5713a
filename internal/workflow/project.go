package workflow

import (
	"context"

	"github.com/pkg/errors"

	"github.com/srkgupta/dependency-track-gate/internal/dtrack"
	"github.com/srkgupta/dependency-track-gate/internal/model"
)

// FindProject looks up the configured project.
func (r *Runner) FindProject(ctx context.Context) (*model.Project, error) {
	r.logger.Debugw("Looking up project", "name", r.config.ProjectName, "version", r.config.ProjectVersion)
	return r.service.LookupProject(ctx, r.config.ProjectName, r.config.ProjectVersion)
}

// ResolveProject finds the configured project, creating it when it is missing
// and auto creation is enabled, and brings its parent, collection logic and
// active flag in line with the configuration.
func (r *Runner) ResolveProject(ctx context.Context) (*model.Project, error) {
	project, err := r.FindProject(ctx)
	switch {
	case err == nil:
	case errors.Is(err, dtrack.ErrNotFound) && r.config.AutoCreate:
		r.logger.Infow("Creating project", "name", r.config.ProjectName, "version", r.config.ProjectVersion,
			"collectionLogic", r.config.CollectionLogic)
		project, err = r.service.CreateProject(ctx, model.Project{
			Name:            r.config.ProjectName,
			Version:         r.config.ProjectVersion,
			Classifier:      model.ClassifierApplication,
			CollectionLogic: model.CollectionLogic(r.config.CollectionLogic),
			CollectionTag:   r.collectionTag(),
		})
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}
	return r.linkProject(ctx, project)
}

func (r *Runner) collectionTag() *model.Tag {
	if model.CollectionLogic(r.config.CollectionLogic) != model.CollectionLogicAggregateWithTag {
		return nil
	}
	return &model.Tag{Name: r.config.CollectionTag}
}

func (r *Runner) linkProject(ctx context.Context, project *model.Project) (*model.Project, error) {
	var patch model.ProjectPatch
	changed := false

	if r.config.ParentName != "" {
		parent, err := r.service.LookupProject(ctx, r.config.ParentName, r.config.ParentVersion)
		if err != nil {
			return nil, errors.WithMessage(err, "failed to resolve parent project")
		}
		if project.Parent == nil || project.Parent.Id != parent.Id {
			r.logger.Infow("Applying parent project", "project", project.String(), "parent", parent.String())
			patch.Parent = &model.ProjectRef{Id: parent.Id}
			changed = true
		}
	}

	current := project.CollectionLogic
	if current == "" {
		current = model.CollectionLogicNone
	}
	if wanted := model.CollectionLogic(r.config.CollectionLogic); wanted != "" && wanted != current {
		r.logger.Infow("Applying collection logic", "project", project.String(), "collectionLogic", wanted)
		patch.CollectionLogic = wanted
		patch.CollectionTag = r.collectionTag()
		changed = true
	}

	if !project.Active {
		active := true
		patch.Active = &active
		changed = true
	}

	if !changed {
		return project, nil
	}
	return r.service.PatchProject(ctx, project.Id, patch)
}
