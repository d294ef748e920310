package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gorisk/app"
	"gorisk/domain/core"
	"gorisk/domain/scenario"
	"gorisk/internal/analyzer"
	"gorisk/internal/errors"
)

// SimulateRequest is the build-and-run payload. Either Template names a
// predefined scenario (with optional field overrides applied afterwards) or
// Scenario carries a full definition.
type SimulateRequest struct {
	Template string             `json:"template,omitempty"`
	Scenario *scenario.Scenario `json:"scenario,omitempty"`
	Options  SimulateOptions    `json:"options"`
}

// SimulateOptions mirrors app.RunOptions in JSON form
type SimulateOptions struct {
	Iterations  int                           `json:"iterations,omitempty"`
	Parallel    bool                          `json:"parallel,omitempty"`
	Workers     int                           `json:"workers,omitempty"`
	Percentiles []float64                     `json:"percentiles,omitempty"`
	Thresholds  map[string]analyzer.Threshold `json:"thresholds,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type validationResponse struct {
	Error  string           `json:"error"`
	Issues []scenario.Issue `json:"issues"`
}

func (s *Server) handleListDistributions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Distributions())
}

func (s *Server) handleListTemplates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Templates())
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	tpl, err := s.svc.Template(name)
	if err != nil {
		if core.IsNotFoundError(err) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error(), Code: errors.CodeNotFound})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error(), Code: errors.GetCode(err)})
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req SimulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error(), Code: errors.CodeInvalidInput})
		return
	}

	var scn *scenario.Scenario
	switch {
	case req.Template != "":
		tpl, err := s.svc.Template(req.Template)
		if err != nil {
			if core.IsNotFoundError(err) {
				writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error(), Code: errors.CodeNotFound})
				return
			}
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error(), Code: errors.GetCode(err)})
			return
		}
		scn = tpl
	case req.Scenario != nil:
		built, issues := s.svc.BuildScenario(*req.Scenario)
		if len(issues) > 0 {
			writeJSON(w, http.StatusBadRequest, validationResponse{Error: "scenario validation failed", Issues: issues})
			return
		}
		scn = built
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "either template or scenario is required", Code: errors.CodeInvalidInput})
		return
	}

	result, err := s.svc.Run(r.Context(), scn, app.RunOptions{
		Iterations:  req.Options.Iterations,
		Parallel:    req.Options.Parallel,
		Workers:     req.Options.Workers,
		Percentiles: req.Options.Percentiles,
		Thresholds:  req.Options.Thresholds,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.GetCode(err) == errors.CodeConfigInvalid || errors.GetCode(err) == errors.CodeValidationError {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, errorResponse{Error: err.Error(), Code: errors.GetCode(err)})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	fp := core.Fingerprint(chi.URLParam(r, "fingerprint"))
	result, err := s.svc.CachedResult(r.Context(), fp)
	if err != nil {
		if core.IsNotFoundError(err) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error(), Code: errors.CodeNotFound})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error(), Code: errors.GetCode(err)})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
