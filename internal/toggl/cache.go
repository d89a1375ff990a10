package toggl

import (
	"sync"
	"time"
)

// WorkspaceCache keeps the workspace list between runs of a long-lived
// scheduler so that each sync does not re-resolve the workspace name.
type WorkspaceCache struct {
	mu         sync.RWMutex
	workspaces []Workspace
	fetchedAt  time.Time
	ttl        time.Duration
}

func NewWorkspaceCache(ttl time.Duration) *WorkspaceCache {
	return &WorkspaceCache{ttl: ttl}
}

func (c *WorkspaceCache) Get() []Workspace {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.workspaces == nil || time.Since(c.fetchedAt) > c.ttl {
		return nil
	}

	result := make([]Workspace, len(c.workspaces))
	copy(result, c.workspaces)
	return result
}

func (c *WorkspaceCache) Set(workspaces []Workspace) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.workspaces = make([]Workspace, len(workspaces))
	copy(c.workspaces, workspaces)
	c.fetchedAt = time.Now()
}

func (c *WorkspaceCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.workspaces = nil
}
