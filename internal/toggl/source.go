package toggl

import (
	"context"
	"fmt"
	"time"

	"github.com/christopherklint97/balancr/internal/metrics"
)

// Source adapts the client to the pipeline's fetch contract: raw entries of
// one workspace starting in [start, end).
type Source struct {
	client     *Client
	workspace  string
	windowDays int
	reports    bool
}

// NewSource reads through the v9 API in windows of windowDays, or through the
// Reports API when reports is set.
func NewSource(client *Client, workspace string, windowDays int, reports bool) *Source {
	return &Source{client: client, workspace: workspace, windowDays: windowDays, reports: reports}
}

func (s *Source) Fetch(ctx context.Context, start, end time.Time) ([]metrics.RawEntry, error) {
	wid, err := s.client.ResolveWorkspaceID(ctx, s.workspace)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace: %w", err)
	}

	var entries []TimeEntry
	if s.reports {
		entries, err = s.client.FetchReport(ctx, wid, start, end.Add(-time.Nanosecond))
	} else {
		entries, err = s.client.FetchRange(ctx, start, end, s.windowDays)
	}
	if err != nil {
		return nil, err
	}

	return ToRaw(inWorkspace(entries, wid)), nil
}

func inWorkspace(entries []TimeEntry, wid int64) []TimeEntry {
	out := entries[:0:0]
	for _, e := range entries {
		if e.WorkspaceID == 0 || e.WorkspaceID == wid {
			out = append(out, e)
		}
	}
	return out
}
