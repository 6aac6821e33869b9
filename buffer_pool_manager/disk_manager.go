package buffer_pool_manager

import (
	"encoding/binary"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
)

// DiskManager is responsible for reading, writing, allocating and deallocating pages on disk.
type DiskManager interface {

	// readPage reads the content of a page into the destination buffer, which must be PAGE_SIZE bytes.
	readPage(pageId PageID, data []byte) error

	// writePage writes a page's content to its slot in the file.
	writePage(pageId PageID, data []byte) error

	// allocatePage allocates a page in the file and returns a new page ID for use.
	// It reuses a deallocated page ID if available, otherwise increments maxAllocatedPageId and returns a new page ID.
	allocatePage() (PageID, error)

	// deallocatePage marks a page ID as free, making it available for future allocation.
	deallocatePage(pageId PageID)

	// writes the serialized metadata page to file, then closes the file.
	close() error
}

// maximum number of deallocated page IDs the metadata page can record:
// 8 bytes of maxAllocatedPageId, 8 bytes of list length, 8 bytes per ID.
const maxPersistedDeallocatedIds = (PAGE_SIZE - 16) / 8

// serializeMetadataPage encodes the max allocated page ID and the set of deallocated page IDs into
// a single page, so page allocation state survives restarts. Deallocated IDs beyond the page's
// capacity are leaked: they stay allocated on disk but are never handed out again.
func serializeMetadataPage(maxAllocatedPageId PageID, deallocatedPageIds mapset.Set[PageID]) []byte {

	data := make([]byte, PAGE_SIZE)

	ids := deallocatedPageIds.ToSlice()

	if len(ids) > maxPersistedDeallocatedIds {
		ids = ids[:maxPersistedDeallocatedIds]
	}

	pointer := 0
	binary.LittleEndian.PutUint64(data[pointer:pointer+8], uint64(maxAllocatedPageId))
	pointer += 8

	binary.LittleEndian.PutUint64(data[pointer:pointer+8], uint64(len(ids)))
	pointer += 8

	for _, pageId := range ids {
		binary.LittleEndian.PutUint64(data[pointer:pointer+8], uint64(pageId))
		pointer += 8
	}

	return data
}

// deserializeMetadataPage decodes the metadata page read from disk, restoring the page
// allocation state after a restart.
func deserializeMetadataPage(data []byte) (maxAllocatedPageId PageID, deallocatedPageIds mapset.Set[PageID], err error) {

	if len(data) < 16 {
		return 0, nil, fmt.Errorf("metadata page truncated: %d bytes", len(data))
	}

	pointer := 0
	maxAllocatedPageId = PageID(binary.LittleEndian.Uint64(data[pointer : pointer+8]))
	pointer += 8

	deallocatedPageIdCount := binary.LittleEndian.Uint64(data[pointer : pointer+8])
	pointer += 8

	if deallocatedPageIdCount > maxPersistedDeallocatedIds {
		return 0, nil, fmt.Errorf("metadata page corrupt: %d deallocated page IDs", deallocatedPageIdCount)
	}

	deallocatedPageIds = mapset.NewThreadUnsafeSet[PageID]()

	for i := 0; i < int(deallocatedPageIdCount); i++ {
		deallocatedPageIds.Add(PageID(binary.LittleEndian.Uint64(data[pointer : pointer+8])))
		pointer += 8
	}

	return maxAllocatedPageId, deallocatedPageIds, nil
}
