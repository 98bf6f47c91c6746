package dto

import "github.com/pratik-mahalle/skuprice/internal/domain/run"

// TriggerRunRequest is the optional body of a manual run trigger
type TriggerRunRequest struct {
	Wait bool `json:"wait"`
}

// RunListRequest represents run list query parameters
type RunListRequest struct {
	Status string `json:"status" validate:"omitempty,oneof=running completed partial failed skipped cancelled"`
}

// RunFilter converts the request to a repository filter
func (r RunListRequest) RunFilter(limit, offset int) run.Filter {
	return run.Filter{Status: run.Status(r.Status), Limit: limit, Offset: offset}
}
