package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/lox/raincast/internal/store"
)

const maxRunsLimit = 200

type HealthStatus struct {
	Status           string `json:"status"`
	MigrationVersion int    `json:"migration_version"`
	LatestMigration  int    `json:"latest_migration"`
	Error            string `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthStatus{Status: "ok", LatestMigration: store.LatestMigration()}

	version, err := s.store.MigrationVersion()
	switch {
	case err != nil:
		health.Status = "error"
		health.Error = err.Error()
		writeJSON(w, http.StatusInternalServerError, health)
		return
	case version < health.LatestMigration:
		health.Status = "degraded"
	}
	health.MigrationVersion = version
	writeJSON(w, http.StatusOK, health)
}

func (s *Server) handleAPIForecast(w http.ResponseWriter, r *http.Request) {
	city := strings.TrimSpace(r.URL.Query().Get("city"))
	if city == "" {
		city = s.defaultCity
	}
	if city == "" {
		writeError(w, http.StatusBadRequest, "city not provided")
		return
	}

	run, err := s.forecaster.Forecast(r.Context(), city)
	if err != nil {
		log.Printf("api: forecast %s: %v", city, err)
		writeError(w, statusFor(err), errorMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, newRunView(run, s.loc))
}

func (s *Server) handleAPIRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := s.store.RecentRuns(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newRunSummaryViews(runs))
}

func (s *Server) handleAPIRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, newRunView(run, s.loc))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
