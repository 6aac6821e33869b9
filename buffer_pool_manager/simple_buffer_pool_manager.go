package buffer_pool_manager

import (
	"fmt"
	"sync"

	"github.com/emberdb/EmberDB/log_manager"
)

type BufferPoolManager interface {
	FetchPage(pageId PageID) (*Frame, error)
	UnpinPage(pageId PageID, isDirty bool) error
	FlushPage(pageId PageID) error
	FlushAllPages() error
	NewPage() (*Frame, PageID, error)
	DeletePage(pageId PageID) (bool, error)

	NewReadGuard(pageId PageID) (*ReadGuard, error)
	NewWriteGuard(pageId PageID) (*WriteGuard, error)

	Close() error
}

// SimpleBufferPoolManager mediates all access to on-disk pages, keeping a bounded
// set of them resident in memory. A page handed out by FetchPage/NewPage is pinned
// and is never reused for a different page until every caller has unpinned it.
//
// Every frame is in exactly one of three states: on the free list (holds no page),
// resident and tracked by the page table, or mid-transition inside a single locked
// operation. Frames with pin count zero that are resident are eviction candidates
// owned by the replacer.
type SimpleBufferPoolManager struct {

	// one lock guards the frames' metadata, the free list, the page table and the replacer.
	// Disk I/O is performed while holding it, correctness over concurrency.
	mutex *sync.Mutex

	frames     []*Frame
	freeFrames []FrameID
	pageTable  map[PageID]FrameID

	replacer Replacer
	disk     DiskManager

	// retained for logging-before-flush integration, the pool itself never calls into it.
	wal *log_manager.LogManager
}

func NewSimpleBufferPoolManager(poolSize int, replacer Replacer, disk DiskManager, wal *log_manager.LogManager) *SimpleBufferPoolManager {

	bufferPool := &SimpleBufferPoolManager{
		mutex:      &sync.Mutex{},
		frames:     make([]*Frame, poolSize),
		freeFrames: make([]FrameID, poolSize),
		pageTable:  make(map[PageID]FrameID),
		replacer:   replacer,
		disk:       disk,
		wal:        wal,
	}

	// initially every frame is on the free list.
	for i := 0; i < poolSize; i++ {
		bufferPool.frames[i] = newFrame()
		bufferPool.freeFrames[i] = FrameID(i)
	}

	return bufferPool
}

// FetchPage returns the frame holding the requested page, pinning it for the caller.
// If the page is not resident, a victim frame is claimed (free list first, replacer
// second), its previous content written back if dirty, and the page is read from disk.
// Returns ErrBufferPoolFull if every frame is pinned.
func (bufferPool *SimpleBufferPoolManager) FetchPage(pageId PageID) (*Frame, error) {

	bufferPool.mutex.Lock()
	defer bufferPool.mutex.Unlock()

	// page already resident, pin and return.
	if frameId, exists := bufferPool.pageTable[pageId]; exists {

		frame := bufferPool.frames[frameId]

		frame.pinCount++

		if frame.pinCount == 1 {
			bufferPool.replacer.remove(frameId)
		}

		return frame, nil
	}

	frameId, found := bufferPool.findVictim()

	if !found {
		return nil, ErrBufferPoolFull
	}

	frame := bufferPool.frames[frameId]

	if err := bufferPool.evict(frame); err != nil {
		// the frame still holds a valid unpinned page, hand it back to the replacer.
		bufferPool.replacer.insert(frameId)
		return nil, err
	}

	if err := bufferPool.disk.readPage(pageId, frame.data); err != nil {

		frame.reset()
		bufferPool.freeFrames = append(bufferPool.freeFrames, frameId)
		return nil, fmt.Errorf("failed to read page %d: %w", pageId, err)
	}

	frame.pageId = pageId
	frame.pinCount = 1
	frame.dirty = false

	bufferPool.pageTable[pageId] = frameId

	return frame, nil
}

// UnpinPage releases one pin held on the page. The dirty flag is ORed in across
// unpinners: once any caller reports the page dirty it stays dirty until a flush.
// Unpinning a page whose pin count is already zero fails with ErrPageNotPinned.
func (bufferPool *SimpleBufferPoolManager) UnpinPage(pageId PageID, isDirty bool) error {

	bufferPool.mutex.Lock()
	defer bufferPool.mutex.Unlock()

	frameId, exists := bufferPool.pageTable[pageId]

	if !exists {
		return ErrPageNotResident
	}

	frame := bufferPool.frames[frameId]

	if frame.pinCount == 0 {
		return ErrPageNotPinned
	}

	frame.pinCount--

	if isDirty {
		frame.dirty = true
	}

	if frame.pinCount == 0 {
		bufferPool.replacer.insert(frameId)
	}

	return nil
}

// FlushPage writes the page's content back to disk and clears its dirty flag.
// Flushing a resident but clean page is a no-op that reports success.
func (bufferPool *SimpleBufferPoolManager) FlushPage(pageId PageID) error {

	bufferPool.mutex.Lock()
	defer bufferPool.mutex.Unlock()

	frameId, exists := bufferPool.pageTable[pageId]

	if !exists {
		return ErrPageNotResident
	}

	frame := bufferPool.frames[frameId]

	if !frame.dirty {
		return nil
	}

	if err := bufferPool.disk.writePage(frame.pageId, frame.data); err != nil {
		return fmt.Errorf("failed to flush page %d: %w", pageId, err)
	}

	frame.dirty = false

	return nil
}

// FlushAllPages writes every resident dirty page back to disk. Used on checkpoint and shutdown.
func (bufferPool *SimpleBufferPoolManager) FlushAllPages() error {

	bufferPool.mutex.Lock()
	defer bufferPool.mutex.Unlock()

	for _, frame := range bufferPool.frames {

		if frame.pageId == INVALID_PAGE_ID || !frame.dirty {
			continue
		}

		if err := bufferPool.disk.writePage(frame.pageId, frame.data); err != nil {
			return fmt.Errorf("failed to flush page %d: %w", frame.pageId, err)
		}

		frame.dirty = false
	}

	return nil
}

// NewPage allocates a fresh page on disk and pins a zeroed frame for it.
// Returns ErrBufferPoolFull if every frame is pinned.
func (bufferPool *SimpleBufferPoolManager) NewPage() (*Frame, PageID, error) {

	bufferPool.mutex.Lock()
	defer bufferPool.mutex.Unlock()

	frameId, found := bufferPool.findVictim()

	if !found {
		return nil, INVALID_PAGE_ID, ErrBufferPoolFull
	}

	frame := bufferPool.frames[frameId]

	if err := bufferPool.evict(frame); err != nil {
		bufferPool.replacer.insert(frameId)
		return nil, INVALID_PAGE_ID, err
	}

	pageId, err := bufferPool.disk.allocatePage()

	if err != nil {
		frame.reset()
		bufferPool.freeFrames = append(bufferPool.freeFrames, frameId)
		return nil, INVALID_PAGE_ID, fmt.Errorf("failed to allocate page: %w", err)
	}

	frame.reset()
	frame.pageId = pageId
	frame.pinCount = 1

	bufferPool.pageTable[pageId] = frameId

	return frame, pageId, nil
}

// DeletePage removes a page from the buffer pool and deallocates it on disk.
// A page that is not resident is trivially deleted. A pinned page is refused,
// in which case (false, nil) is returned.
func (bufferPool *SimpleBufferPoolManager) DeletePage(pageId PageID) (bool, error) {

	bufferPool.mutex.Lock()
	defer bufferPool.mutex.Unlock()

	frameId, exists := bufferPool.pageTable[pageId]

	if !exists {
		return true, nil
	}

	frame := bufferPool.frames[frameId]

	if frame.pinCount > 0 {
		return false, nil
	}

	bufferPool.disk.deallocatePage(pageId)

	delete(bufferPool.pageTable, pageId)

	// the frame's identity is gone, so it is tracked as unassigned rather than evictable.
	bufferPool.replacer.remove(frameId)
	frame.reset()
	bufferPool.freeFrames = append(bufferPool.freeFrames, frameId)

	return true, nil
}

// Close flushes all resident dirty pages and closes the disk manager.
func (bufferPool *SimpleBufferPoolManager) Close() error {

	if err := bufferPool.FlushAllPages(); err != nil {
		return err
	}

	return bufferPool.disk.close()
}

// findVictim returns a frame that can hold a new page. Free frames are always
// preferred over eviction, a resident page is never discarded while truly empty
// slots exist. Called with the buffer pool lock held.
func (bufferPool *SimpleBufferPoolManager) findVictim() (FrameID, bool) {

	if len(bufferPool.freeFrames) > 0 {

		frameId := bufferPool.freeFrames[0]
		bufferPool.freeFrames = bufferPool.freeFrames[1:]
		return frameId, true
	}

	return bufferPool.replacer.victim()
}

// evict writes the frame's current page back to disk if dirty, then removes it
// from the page table. The write-back must complete before the frame's content
// is overwritten with a different page's data. Called with the buffer pool lock held.
func (bufferPool *SimpleBufferPoolManager) evict(frame *Frame) error {

	if frame.pageId == INVALID_PAGE_ID {
		return nil
	}

	if frame.dirty {

		if err := bufferPool.disk.writePage(frame.pageId, frame.data); err != nil {
			return fmt.Errorf("failed to write back page %d before eviction: %w", frame.pageId, err)
		}

		frame.dirty = false
	}

	delete(bufferPool.pageTable, frame.pageId)
	frame.pageId = INVALID_PAGE_ID

	return nil
}
