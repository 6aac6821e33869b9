package buffer_pool_manager

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ncw/directio"
)

// DirectIODiskManager uses Direct I/O to read/write pages of data directly between user process memory and disk controller.

// Direct I/O bypasses the kernel page cache, this is useful because:
// 1. It prevents the file data from being cached twice, once in kernel page cache, and once in the buffer pool.
// 2. It gives the database complete control over when data is flushed to disk.

type DirectIODiskManager struct {
	file *os.File

	mutex              *sync.Mutex
	deallocatedPageIds mapset.Set[PageID]
	maxAllocatedPageId PageID
}

func NewDirectIODiskManager(filePath string) (*DirectIODiskManager, error) {

	newFileCreated := false

	// check if a database file exists in the given file path.
	if _, err := os.Stat(filePath); errors.Is(err, os.ErrNotExist) {
		slog.Info("database file does not exist, creating new file...", "filePath", filePath, "function", "NewDirectIODiskManager", "at", "DirectIODiskManager")
		newFileCreated = true
	}

	slog.Info("Opening file in DIRECT I/O mode", "function", "NewDirectIODiskManager", "at", "DirectIODiskManager")

	file, err := OpenFileDirectIO(filePath, os.O_RDWR|os.O_CREATE, 0644)

	if err != nil {
		return nil, err
	}

	disk := &DirectIODiskManager{
		file:  file,
		mutex: &sync.Mutex{},
	}

	// if a new file had to be created, create a metadata page, and write it to disk.
	if newFileCreated {

		disk.deallocatedPageIds = mapset.NewThreadUnsafeSet[PageID]()
		disk.maxAllocatedPageId = METADATA_PAGE_ID

		slog.Info("writing new metadata page", "function", "NewDirectIODiskManager", "at", "DirectIODiskManager")

		if err = disk.writePage(METADATA_PAGE_ID, serializeMetadataPage(disk.maxAllocatedPageId, disk.deallocatedPageIds)); err != nil {

			slog.Error("Failed to write metadata page", "error", err.Error(), "function", "NewDirectIODiskManager", "at", "DirectIODiskManager")
			return nil, err
		}

		return disk, nil
	}

	slog.Info("Reading metadata page from existing file", "function", "NewDirectIODiskManager", "at", "DirectIODiskManager")

	metadataPageData := make([]byte, PAGE_SIZE)

	if err = disk.readPage(METADATA_PAGE_ID, metadataPageData); err != nil {

		slog.Error("Failed to read metadata page", "error", err.Error(), "function", "NewDirectIODiskManager", "at", "DirectIODiskManager")
		return nil, err
	}

	disk.maxAllocatedPageId, disk.deallocatedPageIds, err = deserializeMetadataPage(metadataPageData)

	if err != nil {
		return nil, err
	}

	return disk, nil
}

// readPage reads the content of a page into the destination buffer.
// Direct I/O requires block-aligned memory, so the read lands in an aligned
// block first and is copied out to the caller's buffer.
func (disk *DirectIODiskManager) readPage(pageId PageID, data []byte) error {

	block := directio.AlignedBlock(PAGE_SIZE)

	// the ReadAt function internally calls the pread system call that reads data at the offset in a thread safe manner.
	n, err := disk.file.ReadAt(block, int64(pageId)*PAGE_SIZE)

	if err != nil {
		slog.Error("Failed to read page", "pageId", pageId, "error", err.Error(), "function", "readPage", "at", "DirectIODiskManager")
		return err
	}

	if n != PAGE_SIZE {
		return fmt.Errorf("incomplete read")
	}

	copy(data, block)
	return nil
}

// writePage writes a page's content to its slot in the file.
func (disk *DirectIODiskManager) writePage(pageId PageID, data []byte) error {

	block := directio.AlignedBlock(PAGE_SIZE)
	copy(block, data)

	// the WriteAt function internally calls the pwrite system call that writes data to the offset in a thread safe manner.
	n, err := disk.file.WriteAt(block, int64(pageId)*PAGE_SIZE)

	if err != nil {
		slog.Error("Failed to write page", "pageId", pageId, "error", err.Error(), "function", "writePage", "at", "DirectIODiskManager")
		return err
	}

	if n != PAGE_SIZE {
		return fmt.Errorf("incomplete write")
	}

	return nil
}

// allocatePage allocates a page in the file and returns a new page ID for use.
// It reuses a deallocated page ID if available, otherwise increments maxAllocatedPageId and returns a new page ID.
func (disk *DirectIODiskManager) allocatePage() (PageID, error) {

	disk.mutex.Lock()
	defer disk.mutex.Unlock()

	// check if deallocated pages exist in the file.
	// A deallocated page is a page that was previously allocated, but is no longer useful, and can be reused.
	if pageId, exists := disk.deallocatedPageIds.Pop(); exists {

		slog.Info(fmt.Sprintf("allocating existing page with page ID = %d", pageId), "function", "allocatePage", "at", "DirectIODiskManager")
		return pageId, nil
	}

	// if all pages in the file are currently allocated, we check the file size.
	fileStats, err := disk.file.Stat()

	if err != nil {
		return INVALID_PAGE_ID, err
	}

	// if the number of pages in the file = max allocated page ID + 1 (plus one because page IDs start from 0),
	// then the file is full and doesnt have free pages, so we add 16 pages to the end of the file.
	if disk.maxAllocatedPageId+1 == PageID(fileStats.Size()/PAGE_SIZE) {

		block := directio.AlignedBlock(PAGE_SIZE * 16)

		n, err := disk.file.WriteAt(block, int64(disk.maxAllocatedPageId+1)*PAGE_SIZE)

		if err != nil {
			slog.Error("Failed to extend file", "error", err.Error(), "function", "allocatePage", "at", "DirectIODiskManager")
			return INVALID_PAGE_ID, err
		}

		if n != len(block) {
			return INVALID_PAGE_ID, fmt.Errorf("incomplete write while extending file")
		}
	}

	pageId := disk.maxAllocatedPageId + 1
	disk.maxAllocatedPageId++

	slog.Info(fmt.Sprintf("allocating new page with page ID = %d", pageId), "function", "allocatePage", "at", "DirectIODiskManager")

	return pageId, nil
}

// deallocatePage marks a page ID as free, making it available for future allocation.
func (disk *DirectIODiskManager) deallocatePage(pageId PageID) {

	slog.Info(fmt.Sprintf("deallocating page with page ID = %d", pageId), "function", "deallocatePage", "at", "DirectIODiskManager")

	disk.mutex.Lock()
	disk.deallocatedPageIds.Add(pageId)
	disk.mutex.Unlock()
}

// writes the serialized metadata page to file, then closes the file.
func (disk *DirectIODiskManager) close() error {

	slog.Info("Closing DirectIODiskManager...", "function", "close", "at", "DirectIODiskManager")

	disk.mutex.Lock()
	defer disk.mutex.Unlock()

	slog.Info("Writing metadata page before closing", "function", "close", "at", "DirectIODiskManager")

	if err := disk.writePage(METADATA_PAGE_ID, serializeMetadataPage(disk.maxAllocatedPageId, disk.deallocatedPageIds)); err != nil {

		slog.Error("Failed to write metadata page", "error", err.Error(), "function", "close", "at", "DirectIODiskManager")
		return err
	}

	if err := disk.file.Close(); err != nil {

		slog.Error("Failed to close file", "error", err.Error(), "function", "close", "at", "DirectIODiskManager")
		return err
	}

	return nil
}
