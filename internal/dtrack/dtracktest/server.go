// Package dtracktest provides an in-memory Dependency-Track API for tests.
package dtracktest

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/srkgupta/dependency-track-gate/internal/model"
)

const APIKey = "test-api-key"

// Route names accepted by Fail.
const (
	RouteUploadBom  = "upload-bom"
	RouteUploadScan = "upload-scan"
	RouteToken      = "token"
	RouteExportBom  = "export-bom"
	RouteLookup     = "lookup"
	RouteCreate     = "create-project"
	RouteProject    = "project"
	RoutePatch      = "patch-project"
	RouteFindings   = "findings"
	RouteMetrics    = "metrics"
	RouteAnalysis   = "analysis"
)

const (
	emptyCycloneDX  = `{"bomFormat":"CycloneDX","specVersion":"1.4","version":1,"components":[]}`
	headerAPIKey    = "X-Api-Key"
	contentTypeJSON = "application/json"
)

type Server struct {
	*httptest.Server

	mu             sync.Mutex
	router         *mux.Router
	projects       map[uuid.UUID]*model.Project
	findings       map[uuid.UUID][]model.Finding
	metrics        map[uuid.UUID]*model.ProjectMetrics
	metricsPending map[uuid.UUID]int
	boms           map[uuid.UUID][]byte
	tokens         map[uuid.UUID]int
	failures       map[string][]int
	analyses       []model.AnalysisRequest
	uploads        []model.BomSubmitRequest
	scans          []model.ScanSubmitRequest

	// ProcessingPolls is how many status checks report a new token as still
	// processing.
	ProcessingPolls int
}

// NewServer starts a server. Callers must Close it.
func NewServer() *Server {
	s := &Server{
		projects:       map[uuid.UUID]*model.Project{},
		findings:       map[uuid.UUID][]model.Finding{},
		metrics:        map[uuid.UUID]*model.ProjectMetrics{},
		metricsPending: map[uuid.UUID]int{},
		boms:           map[uuid.UUID][]byte{},
		tokens:         map[uuid.UUID]int{},
		failures:       map[string][]int{},
	}
	s.initializeRouter()
	s.Server = httptest.NewServer(s.router)
	return s
}

func (s *Server) initializeRouter() {
	s.router = mux.NewRouter()
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.authenticate, s.injectFailures)

	api.HandleFunc("/bom", s.handleUploadBom).Methods(http.MethodPut).Name(RouteUploadBom)
	api.HandleFunc("/scan", s.handleUploadScan).Methods(http.MethodPut).Name(RouteUploadScan)
	api.HandleFunc("/bom/token/{uuid}", s.handleToken).Methods(http.MethodGet).Name(RouteToken)
	api.HandleFunc("/bom/cyclonedx/project/{uuid}", s.handleExportBom).Methods(http.MethodGet).Name(RouteExportBom)
	api.HandleFunc("/project/lookup", s.handleLookup).Methods(http.MethodGet).Name(RouteLookup)
	api.HandleFunc("/project", s.handleCreateProject).Methods(http.MethodPut).Name(RouteCreate)
	api.HandleFunc("/project/{uuid}", s.handleProject).Methods(http.MethodGet).Name(RouteProject)
	api.HandleFunc("/project/{uuid}", s.handlePatchProject).Methods(http.MethodPatch).Name(RoutePatch)
	api.HandleFunc("/finding/project/{uuid}", s.handleFindings).Methods(http.MethodGet).Name(RouteFindings)
	api.HandleFunc("/metrics/project/{uuid}/current", s.handleMetrics).Methods(http.MethodGet).Name(RouteMetrics)
	api.HandleFunc("/analysis", s.handleAnalysis).Methods(http.MethodPut).Name(RouteAnalysis)
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(headerAPIKey) != APIKey {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if route := mux.CurrentRoute(r); route != nil {
			if status, ok := s.nextFailure(route.GetName()); ok {
				http.Error(w, http.StatusText(status), status)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) nextFailure(route string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue := s.failures[route]
	if len(queue) == 0 {
		return 0, false
	}
	s.failures[route] = queue[1:]
	return queue[0], true
}

// Fail makes the next calls of a route answer with the given statuses, one
// per call.
func (s *Server) Fail(route string, statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = append(s.failures[route], statuses...)
}

// AddProject stores a project, assigning an id when it has none.
func (s *Server) AddProject(p model.Project) model.Project {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.Id == uuid.Nil {
		p.Id = uuid.New()
	}
	s.projects[p.Id] = &p
	return p
}

func (s *Server) Project(id uuid.UUID) (model.Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return model.Project{}, false
	}
	return *p, true
}

// SetFindings replaces the findings of a project.
func (s *Server) SetFindings(projectId uuid.UUID, findings ...model.Finding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findings[projectId] = append([]model.Finding(nil), findings...)
}

// SetMetrics stores the current metrics of a project. The first pending
// requests answer without a body, as the server does before its first
// metrics run.
func (s *Server) SetMetrics(projectId uuid.UUID, metrics model.ProjectMetrics, pending int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics[projectId] = &metrics
	s.metricsPending[projectId] = pending
}

// SetBom stores the document returned by a BOM export.
func (s *Server) SetBom(projectId uuid.UUID, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boms[projectId] = data
}

func (s *Server) Bom(projectId uuid.UUID) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boms[projectId]
}

// Analyses returns the analysis requests received so far.
func (s *Server) Analyses() []model.AnalysisRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AnalysisRequest(nil), s.analyses...)
}

func (s *Server) Uploads() []model.BomSubmitRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.BomSubmitRequest(nil), s.uploads...)
}

func (s *Server) Scans() []model.ScanSubmitRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ScanSubmitRequest(nil), s.scans...)
}

func (s *Server) lookup(name, version string) *model.Project {
	for _, p := range s.projects {
		if p.Name == name && p.Version == version {
			return p
		}
	}
	return nil
}

func projectId(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["uuid"])
	return id, err == nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleUploadBom(w http.ResponseWriter, r *http.Request) {
	var req model.BomSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.Bom)
	if err != nil {
		http.Error(w, "bom is not base64", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var project *model.Project
	switch {
	case req.ProjectId != nil:
		project = s.projects[*req.ProjectId]
	default:
		project = s.lookup(req.ProjectName, req.ProjectVersion)
		if project == nil && req.AutoCreate {
			project = &model.Project{Id: uuid.New(), Name: req.ProjectName, Version: req.ProjectVersion, Active: true}
			if parent := s.lookup(req.ParentName, req.ParentVersion); parent != nil && req.ParentName != "" {
				project.Parent = &model.ProjectRef{Id: parent.Id}
			}
			s.projects[project.Id] = project
		}
	}
	if project == nil {
		http.Error(w, "project not found", http.StatusNotFound)
		return
	}

	s.uploads = append(s.uploads, req)
	s.boms[project.Id] = data
	token := uuid.New()
	s.tokens[token] = s.ProcessingPolls
	writeJSON(w, http.StatusOK, model.TokenResponse{Token: token})
}

func (s *Server) handleUploadScan(w http.ResponseWriter, r *http.Request) {
	var req model.ScanSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.scans = append(s.scans, req)
	token := uuid.New()
	s.tokens[token] = s.ProcessingPolls
	writeJSON(w, http.StatusOK, model.TokenResponse{Token: token})
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	token, ok := projectId(r)
	if !ok {
		http.Error(w, "invalid token", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	processing := s.tokens[token] > 0
	if processing {
		s.tokens[token]--
	}
	writeJSON(w, http.StatusOK, model.TokenStatus{Processing: processing})
}

func (s *Server) handleExportBom(w http.ResponseWriter, r *http.Request) {
	id, _ := projectId(r)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[id]; !ok {
		http.Error(w, "project not found", http.StatusNotFound)
		return
	}
	data, ok := s.boms[id]
	if !ok {
		data = []byte(emptyCycloneDX)
	}
	w.Header().Set("Content-Type", contentTypeJSON)
	_, _ = w.Write(data)
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	s.mu.Lock()
	defer s.mu.Unlock()

	project := s.lookup(query.Get("name"), query.Get("version"))
	if project == nil {
		http.Error(w, "The project could not be found.", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var project model.Project
	if err := json.NewDecoder(r.Body).Decode(&project); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lookup(project.Name, project.Version) != nil {
		http.Error(w, "A project with the specified name already exists.", http.StatusConflict)
		return
	}
	project.Id = uuid.New()
	s.projects[project.Id] = &project
	writeJSON(w, http.StatusCreated, project)
}

func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	id, _ := projectId(r)

	s.mu.Lock()
	defer s.mu.Unlock()

	project, ok := s.projects[id]
	if !ok {
		http.Error(w, "The project could not be found.", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *Server) handlePatchProject(w http.ResponseWriter, r *http.Request) {
	id, _ := projectId(r)
	var patch model.ProjectPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	project, ok := s.projects[id]
	if !ok {
		http.Error(w, "The project could not be found.", http.StatusNotFound)
		return
	}
	if patch.Parent != nil {
		project.Parent = patch.Parent
	}
	if patch.Active != nil {
		project.Active = *patch.Active
	}
	if patch.CollectionLogic != "" {
		project.CollectionLogic = patch.CollectionLogic
	}
	if patch.CollectionTag != nil {
		project.CollectionTag = patch.CollectionTag
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *Server) handleFindings(w http.ResponseWriter, r *http.Request) {
	id, _ := projectId(r)
	includeSuppressed := r.URL.Query().Get("suppressed") == "true"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[id]; !ok {
		http.Error(w, "The project could not be found.", http.StatusNotFound)
		return
	}
	findings := []model.Finding{}
	for _, f := range s.findings[id] {
		if !includeSuppressed && f.Analysis != nil && f.Analysis.Suppressed {
			continue
		}
		findings = append(findings, f)
	}
	writeJSON(w, http.StatusOK, findings)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	id, _ := projectId(r)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[id]; !ok {
		http.Error(w, "The project could not be found.", http.StatusNotFound)
		return
	}
	metrics, ok := s.metrics[id]
	if !ok || s.metricsPending[id] > 0 {
		if s.metricsPending[id] > 0 {
			s.metricsPending[id]--
		}
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	var req model.AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.analyses = append(s.analyses, req)
	findings := s.findings[req.ProjectId]
	for i, f := range findings {
		if f.Component != nil && f.Vulnerability != nil &&
			f.Component.Id == req.ComponentId && f.Vulnerability.Id == req.VulnerabilityId {
			findings[i].Analysis = &model.Analysis{
				State:         req.State,
				Justification: req.Justification,
				Response:      req.Response,
				Details:       req.Details,
				Suppressed:    req.Suppressed,
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"analysisState": req.State,
		"isSuppressed":  req.Suppressed,
	})
}
