package buffer_pool_manager

// ReadGuard provides shared read access to a page stored in a frame in the buffer pool.
// Like the WriteGuard, it holds a pin from construction until Done.
type ReadGuard struct {
	active     bool
	frame      *Frame
	bufferPool BufferPoolManager
}

// NewReadGuard returns an active read guard.
// All read guards corresponding to a page share a RW lock.
func (bufferPool *SimpleBufferPoolManager) NewReadGuard(pageId PageID) (*ReadGuard, error) {

	frame, err := bufferPool.FetchPage(pageId)

	if err != nil {
		return nil, err
	}

	frame.mutex.RLock()

	guard := &ReadGuard{
		active:     true,
		frame:      frame,
		bufferPool: bufferPool,
	}

	return guard, nil
}

// GetPageId returns the page ID of the page corresponding to the read guard.
func (guard *ReadGuard) GetPageId() PageID {

	if !guard.active {
		return INVALID_PAGE_ID
	}

	return guard.frame.pageId
}

// GetPageData returns the page content for reading only.
func (guard *ReadGuard) GetPageData() []byte {

	if !guard.active {
		return nil
	}

	return guard.frame.data
}

func (guard *ReadGuard) IsActive() bool {
	return guard.active
}

// Done releases the pin held by the guard and the shared lock on the page.
// A guard becomes inactive and cannot be reused if this function returns true.
func (guard *ReadGuard) Done() bool {

	if !guard.active {
		return false
	}

	_ = guard.bufferPool.UnpinPage(guard.frame.pageId, false)

	guard.frame.mutex.RUnlock()

	guard.frame = nil
	guard.bufferPool = nil
	guard.active = false

	return true
}
