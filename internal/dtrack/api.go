package dtrack

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/srkgupta/dependency-track-gate/internal/model"
)

// UploadBom submits a base64 encoded BOM and returns the processing token.
func (c *Client) UploadBom(ctx context.Context, req model.BomSubmitRequest) (uuid.UUID, error) {
	var response model.TokenResponse
	ok, err := c.do(ctx, http.MethodPut, bomPath, req, &response)
	if err != nil {
		return uuid.Nil, errors.WithMessage(err, "failed to upload BOM")
	}
	if !ok {
		return uuid.Nil, errors.New("BOM upload answered without a token")
	}
	return response.Token, nil
}

// UploadScan submits a base64 encoded scan result.
func (c *Client) UploadScan(ctx context.Context, req model.ScanSubmitRequest) (uuid.UUID, error) {
	var response model.TokenResponse
	if _, err := c.do(ctx, http.MethodPut, scanPath, req, &response); err != nil {
		return uuid.Nil, errors.WithMessage(err, "failed to upload scan")
	}
	return response.Token, nil
}

// TokenStatus tells whether the server is still processing an upload.
func (c *Client) TokenStatus(ctx context.Context, token uuid.UUID) (model.TokenStatus, error) {
	var status model.TokenStatus
	if _, err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/%s", bomTokenPath, token), nil, &status); err != nil {
		return model.TokenStatus{}, errors.WithMessage(err, "failed to check token")
	}
	return status, nil
}

func (c *Client) LookupProject(ctx context.Context, name, version string) (*model.Project, error) {
	query := url.Values{}
	query.Set("name", name)
	query.Set("version", version)

	var project model.Project
	if _, err := c.do(ctx, http.MethodGet, lookupPath+"?"+query.Encode(), nil, &project); err != nil {
		return nil, errors.WithMessagef(err, "failed to look up project %s:%s", name, version)
	}
	return &project, nil
}

func (c *Client) Project(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	var project model.Project
	if _, err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/%s", projectPath, id), nil, &project); err != nil {
		return nil, errors.WithMessagef(err, "failed to fetch project %s", id)
	}
	return &project, nil
}

type projectCreate struct {
	Name            string                `json:"name"`
	Version         string                `json:"version,omitempty"`
	Classifier      model.Classifier      `json:"classifier,omitempty"`
	Parent          *model.ProjectRef     `json:"parent,omitempty"`
	CollectionLogic model.CollectionLogic `json:"collectionLogic,omitempty"`
	CollectionTag   *model.Tag            `json:"collectionTag,omitempty"`
	Active          bool                  `json:"active"`
}

// CreateProject creates a project. The server assigns the id.
func (c *Client) CreateProject(ctx context.Context, project model.Project) (*model.Project, error) {
	req := projectCreate{
		Name:            project.Name,
		Version:         project.Version,
		Classifier:      project.Classifier,
		Parent:          project.Parent,
		CollectionLogic: project.CollectionLogic,
		CollectionTag:   project.CollectionTag,
		Active:          true,
	}
	var created model.Project
	if _, err := c.do(ctx, http.MethodPut, projectPath, req, &created); err != nil {
		return nil, errors.WithMessagef(err, "failed to create project %s", project.String())
	}
	return &created, nil
}

func (c *Client) PatchProject(ctx context.Context, id uuid.UUID, patch model.ProjectPatch) (*model.Project, error) {
	var updated model.Project
	if _, err := c.do(ctx, http.MethodPatch, fmt.Sprintf("%s/%s", projectPath, id), patch, &updated); err != nil {
		return nil, errors.WithMessagef(err, "failed to update project %s", id)
	}
	return &updated, nil
}

// Findings returns every finding of a project, the ones already suppressed
// upstream included.
func (c *Client) Findings(ctx context.Context, projectId uuid.UUID) ([]model.Finding, error) {
	var findings []model.Finding
	endpoint := fmt.Sprintf("%s/%s?suppressed=true", findingPath, projectId)
	if _, err := c.do(ctx, http.MethodGet, endpoint, nil, &findings); err != nil {
		return nil, errors.WithMessagef(err, "failed to fetch findings of project %s", projectId)
	}

	for i := range findings {
		// untriaged findings may come without an analysis
		if findings[i].Analysis == nil {
			findings[i].Analysis = &model.Analysis{State: model.StateNotSet}
		}
		if v := findings[i].Vulnerability; v != nil {
			v.Severity = model.ParseSeverity(string(v.Severity))
		}
	}
	return findings, nil
}

// CurrentMetrics returns the latest metrics snapshot, or nil when the server
// has not computed one yet.
func (c *Client) CurrentMetrics(ctx context.Context, projectId uuid.UUID) (*model.ProjectMetrics, error) {
	var metrics model.ProjectMetrics
	ok, err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/%s/current", metricsPath, projectId), nil, &metrics)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to fetch metrics of project %s", projectId)
	}
	if !ok {
		return nil, nil
	}
	return &metrics, nil
}

func (c *Client) ApplyAnalysis(ctx context.Context, req model.AnalysisRequest) error {
	c.logger.Debugw("Updating analysis",
		"project", req.ProjectId,
		"component", req.ComponentId,
		"vulnerability", req.VulnerabilityId,
		"state", req.State,
		"suppressed", req.Suppressed)
	if _, err := c.do(ctx, http.MethodPut, analysisPath, req, nil); err != nil {
		return errors.WithMessage(err, "failed to update analysis")
	}
	return nil
}

// DownloadBom exports the current CycloneDX BOM of a project as JSON.
func (c *Client) DownloadBom(ctx context.Context, projectId uuid.UUID) ([]byte, error) {
	data, err := c.raw(ctx, fmt.Sprintf("%s/%s?format=json", bomExportPath, projectId))
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to download BOM of project %s", projectId)
	}
	return data, nil
}
