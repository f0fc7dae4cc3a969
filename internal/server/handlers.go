package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/reportal-io/reportal/internal/report"
	"github.com/reportal-io/reportal/internal/tabular"
	"github.com/reportal-io/reportal/internal/viz"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Success: false, Message: msg})
}

// writeBuilderError maps builder error kinds to HTTP statuses.
func writeBuilderError(w http.ResponseWriter, err error) {
	switch {
	case report.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, report.ErrSessionBusy):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, report.ErrSessionClosed):
		writeError(w, http.StatusGone, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query   string `json:"query"`
		ShowSQL *bool  `json:"showSql"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query must not be empty")
		return
	}
	showSQL := true
	if req.ShowSQL != nil {
		showSQL = *req.ShowSQL
	}

	resp := s.query.Execute(r.Context(), req.Query, showSQL)
	status := http.StatusOK
	if !resp.Success {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := s.catalog.ListTables(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "tables": tables})
}

func (s *Server) handleListColumns(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	columns, err := s.catalog.ListColumns(r.Context(), table)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "columns": columns})
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "reports": summaries})
}

func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	var def report.Definition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if def.Name == "" {
		writeError(w, http.StatusBadRequest, "report name is required")
		return
	}
	if def.DataSource == "" {
		def.DataSource = report.DefaultDataSource
	}

	saved, err := s.store.Create(r.Context(), &def)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "report": saved})
}

func reportID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	id, err := reportID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid report id")
		return
	}
	def, err := s.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "report": def})
}

func (s *Server) handleUpdateReport(w http.ResponseWriter, r *http.Request) {
	id, err := reportID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid report id")
		return
	}
	var def report.Definition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	saved, err := s.store.Update(r.Context(), id, &def)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "report": saved})
}

func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	id, err := reportID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid report id")
		return
	}
	deleted, err := s.store.Delete(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleExecuteReport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QueryConfig report.QueryConfig `json:"query_config"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp := s.query.ExecuteReport(r.Context(), req.QueryConfig)
	status := http.StatusOK
	if !resp.Success {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, resp)
}

// handleEvaluateChart classifies the submitted rows and evaluates chart
// eligibility for the requested view kind.
func (s *Server) handleEvaluateChart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Columns []string         `json:"columns"`
		Data    []map[string]any `json:"data"`
		Kind    string           `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rows := make([]tabular.Row, 0, len(req.Data))
	for _, raw := range req.Data {
		row := make(tabular.Row, len(raw))
		for col, v := range raw {
			row[col] = tabular.FromAny(v)
		}
		rows = append(rows, row)
	}
	res := tabular.NewResult(req.Columns, rows)

	eval, err := viz.Evaluate(res, tabular.Classify(res), viz.Kind(req.Kind))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"kind":     eval.Kind,
		"eligible": eval.Eligible,
		"series":   eval.Series,
	})
}

func (s *Server) handleBuilderState(w http.ResponseWriter, r *http.Request) {
	b, err := s.builderForRequest(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	tables, err := b.LoadCatalog(r.Context())
	if err != nil {
		writeBuilderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"draft":   b.Draft(),
		"tables":  tables,
		"columns": b.Columns(),
	})
}

func (s *Server) handleBuilderAction(w http.ResponseWriter, r *http.Request) {
	b, err := s.builderForRequest(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var action report.Action
	if err := json.NewDecoder(r.Body).Decode(&action); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := b.Apply(r.Context(), action); err != nil {
		writeBuilderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"draft":   b.Draft(),
		"columns": b.Columns(),
	})
}

func (s *Server) handleBuilderPreview(w http.ResponseWriter, r *http.Request) {
	b, err := s.builderForRequest(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	res, err := b.Preview(r.Context())
	if err != nil {
		writeBuilderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"columns": res.Columns,
		"data":    res.Rows,
	})
}

func (s *Server) handleBuilderSave(w http.ResponseWriter, r *http.Request) {
	b, err := s.builderForRequest(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	saved, err := b.Save(r.Context())
	if err != nil {
		writeBuilderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "report": saved})
}

func (s *Server) handleBuilderLoad(w http.ResponseWriter, r *http.Request) {
	b, err := s.builderForRequest(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	id, err := reportID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid report id")
		return
	}
	if err := b.Load(r.Context(), id); err != nil {
		writeBuilderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "draft": b.Draft()})
}

func (s *Server) handleBuilderClose(w http.ResponseWriter, r *http.Request) {
	s.closeBuilder(r)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
