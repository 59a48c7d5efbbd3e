package types

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.hackfix.me/sqlmgr/migration"
	"go.hackfix.me/sqlmgr/state"
)

// MigrationInfo describes a discovered migration.
type MigrationInfo struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Group       string   `json:"group"`
	Depends     []string `json:"depends"`
	Reversible  bool     `json:"reversible"`
	Status      string   `json:"status"`
}

// SkippedInfo describes a definition that was ignored during discovery.
type SkippedInfo struct {
	Path  string `json:"path"`
	ID    string `json:"id,omitempty"`
	Error string `json:"error"`
}

// MigrationsRequest is the request to list migrations.
type MigrationsRequest struct {
	BaseRequest `json:"-"`
}

// MigrationsResponse lists the applied IDs, all discovered migrations, and the
// definitions skipped during discovery.
type MigrationsResponse struct {
	BaseResponse
	Applied []string        `json:"applied"`
	All     []MigrationInfo `json:"all"`
	Skipped []SkippedInfo   `json:"skipped"`
}

// NewMigrationsResponse creates a new MigrationsResponse from the engine
// overview.
func NewMigrationsResponse(ov *migration.Overview) *MigrationsResponse {
	resp := &MigrationsResponse{
		BaseResponse: NewBaseResponse(http.StatusOK, nil),
		Applied:      ov.Applied,
		All:          make([]MigrationInfo, 0, len(ov.Migrations)),
		Skipped:      make([]SkippedInfo, 0, len(ov.Skipped)),
	}
	if resp.Applied == nil {
		resp.Applied = []string{}
	}

	for _, m := range ov.Migrations {
		status := "pending"
		if m.Applied {
			status = "applied"
		}
		depends := m.Depends
		if depends == nil {
			depends = []string{}
		}
		resp.All = append(resp.All, MigrationInfo{
			ID:          m.ID,
			Description: m.Description,
			Group:       m.Group,
			Depends:     depends,
			Reversible:  m.Reversible(),
			Status:      status,
		})
	}
	for _, s := range ov.Skipped {
		resp.Skipped = append(resp.Skipped, SkippedInfo{Path: s.Path, ID: s.ID, Error: s.Err.Error()})
	}

	return resp
}

// RunRequest is the request to apply or roll back migrations.
type RunRequest struct {
	BaseRequest `json:"-"`
	IDs         []string `json:"ids"`
	DryRun      bool     `json:"dry_run"`
}

// Validate checks that all requested IDs are non-empty.
func (r *RunRequest) Validate() error {
	for i, id := range r.IDs {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("empty migration ID at index %d", i)
		}
	}
	return nil
}

// RunResponse is the result of an apply or rollback run.
type RunResponse struct {
	BaseResponse
	RunID    string   `json:"run_id,omitempty"`
	DryRun   bool     `json:"dry_run"`
	Executed []string `json:"executed"`
	Skipped  []string `json:"skipped,omitempty"`
	Failed   string   `json:"failed,omitempty"`
}

// NewRunResponse creates a new RunResponse from a run report.
func NewRunResponse(rep *migration.Report) *RunResponse {
	resp := &RunResponse{BaseResponse: NewBaseResponse(http.StatusOK, nil), Executed: []string{}}
	if rep != nil {
		resp.RunID = rep.RunID
		resp.DryRun = rep.DryRun
		resp.Skipped = rep.Skipped
		resp.Failed = rep.Failed
		if rep.Executed != nil {
			resp.Executed = rep.Executed
		}
	}
	return resp
}

// LogRequest is the request to read or clear the audit log.
type LogRequest struct {
	BaseRequest `json:"-"`
}

// LogEntry is an audit log record.
type LogEntry struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
}

// LogResponse contains the most recent audit log entries, oldest first.
type LogResponse struct {
	BaseResponse
	Entries []LogEntry `json:"entries"`
}

// NewLogResponse creates a new LogResponse.
func NewLogResponse(entries []state.Entry) *LogResponse {
	resp := &LogResponse{
		BaseResponse: NewBaseResponse(http.StatusOK, nil),
		Entries:      make([]LogEntry, 0, len(entries)),
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, LogEntry{
			Time: e.Time, Level: string(e.Level), Message: e.Message, Context: e.Context,
		})
	}
	return resp
}
