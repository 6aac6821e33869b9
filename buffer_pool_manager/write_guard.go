package buffer_pool_manager

import (
	"log/slog"
)

// WriteGuard provides exclusive write access to a page stored in a frame in the buffer pool.
// The guard holds a pin on the page from construction until Done or DeletePage, so the
// frame cannot be evicted underneath the caller, and the pin is released on every path
// that deactivates the guard.
type WriteGuard struct {

	// active is used to prevent users from using a write guard once its Done/DeletePage function has been called.
	active bool

	// dirty records whether the caller modified the page through this guard.
	// It is ORed into the frame's dirty flag when the pin is released.
	dirty bool

	frame      *Frame
	bufferPool BufferPoolManager
}

// NewWriteGuard returns an active write guard.
// All guards corresponding to a page share a RW lock.
func (bufferPool *SimpleBufferPoolManager) NewWriteGuard(pageId PageID) (*WriteGuard, error) {

	frame, err := bufferPool.FetchPage(pageId)

	if err != nil {
		slog.Error("Failed to fetch page for write guard", "pageId", pageId, "error", err.Error())
		return nil, err
	}

	frame.mutex.Lock()

	guard := &WriteGuard{
		active:     true,
		frame:      frame,
		bufferPool: bufferPool,
	}

	return guard, nil
}

// GetPageId returns the page ID of the page corresponding to the write guard.
func (guard *WriteGuard) GetPageId() PageID {

	if !guard.active {
		return INVALID_PAGE_ID
	}

	return guard.frame.pageId
}

// GetPageData returns the page content for in-place modification.
// The caller must call SetDirtyFlag after modifying it.
func (guard *WriteGuard) GetPageData() []byte {

	if !guard.active {
		return nil
	}

	return guard.frame.data
}

func (guard *WriteGuard) IsActive() bool {
	return guard.active
}

// SetDirtyFlag records that the page was modified through this guard.
func (guard *WriteGuard) SetDirtyFlag() bool {

	if !guard.active {
		return false
	}

	guard.dirty = true

	return true
}

// Done releases the pin held by the guard and the exclusive lock on the page.
// A guard becomes inactive and cannot be reused if this function returns true.
func (guard *WriteGuard) Done() bool {

	if !guard.active {
		return false
	}

	_ = guard.bufferPool.UnpinPage(guard.frame.pageId, guard.dirty)

	guard.frame.mutex.Unlock()

	guard.frame = nil
	guard.bufferPool = nil
	guard.active = false

	return true
}

// DeletePage releases the guard's pin, then asks the buffer pool to delete the page.
// The deletion is refused if another caller still holds a pin on the page.
// The guard becomes inactive regardless of whether the deletion went through.
func (guard *WriteGuard) DeletePage() (bool, error) {

	if !guard.active {
		return false, nil
	}

	pageId := guard.frame.pageId

	if err := guard.bufferPool.UnpinPage(pageId, guard.dirty); err != nil {
		return false, err
	}

	guard.frame.mutex.Unlock()

	bufferPool := guard.bufferPool

	guard.frame = nil
	guard.bufferPool = nil
	guard.active = false

	return bufferPool.DeletePage(pageId)
}
