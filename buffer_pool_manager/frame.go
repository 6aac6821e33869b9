package buffer_pool_manager

import (
	"errors"
	"sync"
)

const (
	PAGE_SIZE        = 4096
	METADATA_PAGE_ID = 0

	// page ID 0 is reserved for the metadata page, so it doubles as the "no page" sentinel.
	INVALID_PAGE_ID = PageID(0)
)

// PageID uniquely identifies a fixed-size page on disk. Page IDs are minted by the disk manager.
type PageID uint64

// FrameID is the index of a frame slot in the buffer pool.
type FrameID int

var (
	// ErrBufferPoolFull is returned when every frame is pinned and no victim can be found.
	// This is an expected outcome under load, callers are responsible for retrying.
	ErrBufferPoolFull = errors.New("all frames are pinned, no victim available")

	// ErrPageNotResident is returned when an operation targets a page ID that is not in the page table.
	ErrPageNotResident = errors.New("page is not resident in the buffer pool")

	// ErrPageNotPinned is returned when a page with pin count zero is unpinned.
	ErrPageNotPinned = errors.New("page pin count is already zero")
)

// Frame is a fixed in-memory slot that holds the contents of one page, along with its metadata.
// Exactly poolSize frames exist for the lifetime of the buffer pool, only their contents are replaced.
type Frame struct {

	// synchronizes access to page content for read/write guards.
	// All other fields are guarded by the buffer pool mutex.
	mutex *sync.RWMutex

	pageId   PageID
	data     []byte
	pinCount int
	dirty    bool
}

func newFrame() *Frame {

	return &Frame{
		mutex:  &sync.RWMutex{},
		pageId: INVALID_PAGE_ID,
		data:   make([]byte, PAGE_SIZE),
	}
}

// Data returns the frame's page content. The caller must hold a pin on the page,
// and the frame's RW mutex (via a guard) if other writers may be active.
func (frame *Frame) Data() []byte {
	return frame.data
}

// PageId returns the ID of the page currently held by the frame.
func (frame *Frame) PageId() PageID {
	return frame.pageId
}

// reset returns the frame to the invalid/clean state and zeroes its content.
func (frame *Frame) reset() {

	frame.pageId = INVALID_PAGE_ID
	frame.pinCount = 0
	frame.dirty = false

	clear(frame.data)
}
