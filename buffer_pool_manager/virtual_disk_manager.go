package buffer_pool_manager

import (
	"fmt"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/dsnet/golib/memfile"
)

// VirtualDiskManager keeps the whole database file in memory. It implements the
// same contract as the file-backed disk managers and is used by tests and tools
// that should not touch the filesystem.
type VirtualDiskManager struct {
	db *memfile.File

	mutex              *sync.Mutex
	deallocatedPageIds mapset.Set[PageID]
	maxAllocatedPageId PageID

	// I/O counters, used by tests to assert which operations touched the "disk".
	readCount  uint64
	writeCount uint64
}

func NewVirtualDiskManager() *VirtualDiskManager {

	return &VirtualDiskManager{
		// page 0 is the metadata page, present from the start like in the file-backed managers.
		db:                 memfile.New(make([]byte, PAGE_SIZE)),
		mutex:              &sync.Mutex{},
		deallocatedPageIds: mapset.NewThreadUnsafeSet[PageID](),
		maxAllocatedPageId: METADATA_PAGE_ID,
	}
}

// readPage reads the content of a page into the destination buffer.
func (disk *VirtualDiskManager) readPage(pageId PageID, data []byte) error {

	disk.mutex.Lock()
	defer disk.mutex.Unlock()

	disk.readCount++

	offset := int64(pageId) * PAGE_SIZE

	if offset+int64(len(data)) > int64(len(disk.db.Bytes())) {
		return fmt.Errorf("read past end of file for page %d", pageId)
	}

	_, err := disk.db.ReadAt(data, offset)
	return err
}

// writePage writes a page's content to its slot in the file, extending it if needed.
func (disk *VirtualDiskManager) writePage(pageId PageID, data []byte) error {

	disk.mutex.Lock()
	defer disk.mutex.Unlock()

	disk.writeCount++

	_, err := disk.db.WriteAt(data, int64(pageId)*PAGE_SIZE)
	return err
}

// allocatePage allocates a page and returns a new page ID for use.
// It reuses a deallocated page ID if available, otherwise extends the file with a zero page.
func (disk *VirtualDiskManager) allocatePage() (PageID, error) {

	disk.mutex.Lock()
	defer disk.mutex.Unlock()

	if pageId, exists := disk.deallocatedPageIds.Pop(); exists {
		return pageId, nil
	}

	pageId := disk.maxAllocatedPageId + 1

	if _, err := disk.db.WriteAt(make([]byte, PAGE_SIZE), int64(pageId)*PAGE_SIZE); err != nil {
		return INVALID_PAGE_ID, err
	}

	disk.maxAllocatedPageId = pageId

	return pageId, nil
}

// deallocatePage marks a page ID as free, making it available for future allocation.
func (disk *VirtualDiskManager) deallocatePage(pageId PageID) {

	disk.mutex.Lock()
	disk.deallocatedPageIds.Add(pageId)
	disk.mutex.Unlock()
}

// writes the serialized metadata page into the in-memory file. There is no descriptor to close.
func (disk *VirtualDiskManager) close() error {

	disk.mutex.Lock()
	defer disk.mutex.Unlock()

	_, err := disk.db.WriteAt(serializeMetadataPage(disk.maxAllocatedPageId, disk.deallocatedPageIds), METADATA_PAGE_ID*PAGE_SIZE)
	return err
}
