package buffer_pool_manager

import (
	"errors"
	"fmt"
	"os"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
)

// OSBufferedDiskManager reads and writes pages through the kernel page cache.
// Simpler than the direct I/O manager, at the cost of double caching: once in
// the kernel, once in the buffer pool.
type OSBufferedDiskManager struct {
	file *os.File

	// guards the allocation state. File reads/writes use pread/pwrite and need no lock.
	mutex              *sync.Mutex
	deallocatedPageIds mapset.Set[PageID]
	maxAllocatedPageId PageID
}

func NewOSBufferedDiskManager(filePath string) (*OSBufferedDiskManager, error) {

	newFileCreated := false

	if _, err := os.Stat(filePath); errors.Is(err, os.ErrNotExist) {
		newFileCreated = true
	}

	f, err := os.OpenFile(filePath, os.O_RDWR|os.O_CREATE, 0644)

	if err != nil {
		return nil, err
	}

	disk := &OSBufferedDiskManager{
		file:  f,
		mutex: &sync.Mutex{},
	}

	if newFileCreated {

		disk.deallocatedPageIds = mapset.NewThreadUnsafeSet[PageID]()
		disk.maxAllocatedPageId = METADATA_PAGE_ID

		if err = disk.writePage(METADATA_PAGE_ID, serializeMetadataPage(disk.maxAllocatedPageId, disk.deallocatedPageIds)); err != nil {
			return nil, err
		}

		return disk, nil
	}

	metadataPageData := make([]byte, PAGE_SIZE)

	if err = disk.readPage(METADATA_PAGE_ID, metadataPageData); err != nil {
		return nil, err
	}

	disk.maxAllocatedPageId, disk.deallocatedPageIds, err = deserializeMetadataPage(metadataPageData)

	if err != nil {
		return nil, err
	}

	return disk, nil
}

// readPage reads the content of a page into the destination buffer.
func (disk *OSBufferedDiskManager) readPage(pageId PageID, data []byte) error {

	n, err := disk.file.ReadAt(data, int64(pageId)*PAGE_SIZE)

	if err != nil {
		return err
	}

	if n != len(data) {
		return fmt.Errorf("incomplete read")
	}

	return nil
}

// writePage writes a page's content to its slot in the file.
func (disk *OSBufferedDiskManager) writePage(pageId PageID, data []byte) error {

	n, err := disk.file.WriteAt(data, int64(pageId)*PAGE_SIZE)

	if err != nil {
		return err
	}

	if n != len(data) {
		return fmt.Errorf("incomplete write")
	}

	return nil
}

// allocatePage allocates a page in the file and returns a new page ID for use.
// It reuses a deallocated page ID if available, otherwise extends the file with a zero page.
func (disk *OSBufferedDiskManager) allocatePage() (PageID, error) {

	disk.mutex.Lock()
	defer disk.mutex.Unlock()

	if pageId, exists := disk.deallocatedPageIds.Pop(); exists {
		return pageId, nil
	}

	pageId := disk.maxAllocatedPageId + 1

	// extend the file, so a later read of the page cannot run past EOF.
	if err := disk.writePage(pageId, make([]byte, PAGE_SIZE)); err != nil {
		return INVALID_PAGE_ID, err
	}

	disk.maxAllocatedPageId = pageId

	return pageId, nil
}

// deallocatePage marks a page ID as free, making it available for future allocation.
func (disk *OSBufferedDiskManager) deallocatePage(pageId PageID) {

	disk.mutex.Lock()
	disk.deallocatedPageIds.Add(pageId)
	disk.mutex.Unlock()
}

// writes the serialized metadata page to file, then closes the file.
func (disk *OSBufferedDiskManager) close() error {

	disk.mutex.Lock()
	defer disk.mutex.Unlock()

	if err := disk.writePage(METADATA_PAGE_ID, serializeMetadataPage(disk.maxAllocatedPageId, disk.deallocatedPageIds)); err != nil {
		return err
	}

	return disk.file.Close()
}
