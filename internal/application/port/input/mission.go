package input

import (
	"context"
	"time"

	"shopping-agent/internal/domain/entity"
)

type StartRequest struct {
	Goal          string `json:"goal"`
	URL           string `json:"url"`
	MaxIterations int    `json:"max_iterations,omitempty"`
}

// SessionSnapshot is a read-only view of one mission session.
type SessionSnapshot struct {
	ID              string                  `json:"id"`
	Goal            string                  `json:"goal"`
	URL             string                  `json:"url"`
	CreatedAt       time.Time               `json:"created_at"`
	Running         bool                    `json:"is_running"`
	Cancelled       bool                    `json:"is_cancelled"`
	Status          string                  `json:"status"`
	Outcome         string                  `json:"outcome,omitempty"`
	Iteration       int                     `json:"iteration"`
	MaxIterations   int                     `json:"max_iterations"`
	CurrentURL      string                  `json:"current_url,omitempty"`
	History         []entity.ActionRecord   `json:"history,omitempty"`
	PendingApproval *entity.ApprovalRequest `json:"pending_approval,omitempty"`
	Error           string                  `json:"error,omitempty"`
	Summary         string                  `json:"summary,omitempty"`
}

type MissionService interface {
	Start(ctx context.Context, req StartRequest) (string, <-chan entity.Event, error)
	Get(id string) (SessionSnapshot, bool)
	List() []SessionSnapshot
	Cancel(id string) bool
	Approve(id string) bool
	Deny(id string) bool
}

// PageInfo describes one page opened outside any mission.
type PageInfo struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	Status     int    `json:"http_status,omitempty"`
	Screenshot string `json:"screenshot,omitempty"`
}

// PageAnalysis is a single observe and decide pass over a page.
type PageAnalysis struct {
	PageInfo
	Action           entity.Action   `json:"action"`
	Markers          entity.LabelMap `json:"markers"`
	MarkersFormatted string          `json:"markers_formatted"`
	PageContext      string          `json:"page_context,omitempty"`
}

// PageInspector runs one-shot page operations, each on its own short-lived
// browser.
type PageInspector interface {
	Navigate(ctx context.Context, url string) (PageInfo, error)
	Analyze(ctx context.Context, goal, url string) (PageAnalysis, error)
}
