package toggl

import (
	"time"

	"github.com/christopherklint97/balancr/internal/metrics"
)

type Workspace struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Tag struct {
	ID          int64  `json:"id"`
	WorkspaceID int64  `json:"workspace_id"`
	Name        string `json:"name"`
}

// TimeEntry is a v9 time entry. Stop is nil and Duration negative while the
// entry is still running.
type TimeEntry struct {
	ID          int64    `json:"id"`
	WorkspaceID int64    `json:"workspace_id"`
	Start       string   `json:"start"`
	Stop        *string  `json:"stop"`
	Duration    int64    `json:"duration"`
	Billable    bool     `json:"billable"`
	Tags        []string `json:"tags"`
	Description string   `json:"description"`
}

func (e TimeEntry) ToRaw() metrics.RawEntry {
	return metrics.RawEntry{
		Start:           e.Start,
		Stop:            e.Stop,
		DurationSeconds: e.Duration,
		Billable:        e.Billable,
		Tags:            e.Tags,
	}
}

// ToRaw converts a batch, keeping order.
func ToRaw(entries []TimeEntry) []metrics.RawEntry {
	out := make([]metrics.RawEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ToRaw())
	}
	return out
}

type searchRequest struct {
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date"`
	PageSize       int    `json:"page_size,omitempty"`
	FirstID        int64  `json:"first_id,omitempty"`
	FirstRowNumber int64  `json:"first_row_number,omitempty"`
}

// ReportRow groups detailed report entries that share billable flag and tags.
type ReportRow struct {
	Billable    bool          `json:"billable"`
	TagIDs      []int64       `json:"tag_ids"`
	Description string        `json:"description"`
	TimeEntries []ReportEntry `json:"time_entries"`
}

type ReportEntry struct {
	ID      int64      `json:"id"`
	Seconds int64      `json:"seconds"`
	Start   time.Time  `json:"start"`
	Stop    *time.Time `json:"stop"`
}

// Flatten expands report rows into v9-shaped entries with tag names resolved
// from tagNames. Unknown tag ids are skipped.
func Flatten(rows []ReportRow, tagNames map[int64]string) []TimeEntry {
	var out []TimeEntry
	for _, row := range rows {
		tags := make([]string, 0, len(row.TagIDs))
		for _, id := range row.TagIDs {
			if name, ok := tagNames[id]; ok {
				tags = append(tags, name)
			}
		}
		for _, re := range row.TimeEntries {
			var stop *string
			if re.Stop != nil && !re.Stop.IsZero() {
				s := re.Stop.Format(time.RFC3339)
				stop = &s
			}
			out = append(out, TimeEntry{
				ID:          re.ID,
				Start:       re.Start.Format(time.RFC3339),
				Stop:        stop,
				Duration:    re.Seconds,
				Billable:    row.Billable,
				Tags:        tags,
				Description: row.Description,
			})
		}
	}
	return out
}
