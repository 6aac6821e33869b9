package buffer_pool_manager

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/suite"
)

type BufferPoolManagerTestSuite struct {
	suite.Suite
	bufferPool *SimpleBufferPoolManager
	disk       *VirtualDiskManager
}

func (bs *BufferPoolManagerTestSuite) SetupTest() {

	bs.disk = NewVirtualDiskManager()

	replacer := NewClockReplacer(3)

	bs.bufferPool = NewSimpleBufferPoolManager(3, replacer, bs.disk, nil)
}

// newUnpinnedPage allocates a page through the pool, writes marker content into it,
// and unpins it dirty.
func (bs *BufferPoolManagerTestSuite) newUnpinnedPage(marker byte) PageID {

	frame, pageId, err := bs.bufferPool.NewPage()

	bs.Suite.Require().NoError(err)

	frame.data[0] = marker

	bs.Suite.Require().NoError(bs.bufferPool.UnpinPage(pageId, true))

	return pageId
}

// the free list and the page table must never both claim the same frame.
func (bs *BufferPoolManagerTestSuite) assertFrameOwnershipDisjoint() {

	freeFrames := make(map[FrameID]bool)

	for _, frameId := range bs.bufferPool.freeFrames {
		freeFrames[frameId] = true
	}

	for pageId, frameId := range bs.bufferPool.pageTable {
		bs.Suite.Assert().False(freeFrames[frameId], "frame %d holds page %d but is also on the free list", frameId, pageId)
	}
}

func (bs *BufferPoolManagerTestSuite) TestNewPageExhaustsPool() {

	pageIds := make(map[PageID]bool)

	for i := 0; i < 3; i++ {

		frame, pageId, err := bs.bufferPool.NewPage()

		bs.Suite.Require().NoError(err)
		bs.Suite.Assert().Equal(1, frame.pinCount)

		pageIds[pageId] = true
	}

	bs.Suite.Assert().Equal(3, len(pageIds))
	bs.Suite.Assert().Equal(0, len(bs.bufferPool.freeFrames))

	// every frame is pinned, the fourth page cannot be placed anywhere.
	_, _, err := bs.bufferPool.NewPage()

	bs.Suite.Assert().ErrorIs(err, ErrBufferPoolFull)

	bs.assertFrameOwnershipDisjoint()
}

func (bs *BufferPoolManagerTestSuite) TestUnpinnedFrameIsNextVictim() {

	_, pageId1, err := bs.bufferPool.NewPage()
	bs.Suite.Require().NoError(err)

	frame2, pageId2, err := bs.bufferPool.NewPage()
	bs.Suite.Require().NoError(err)

	_, _, err = bs.bufferPool.NewPage()
	bs.Suite.Require().NoError(err)

	// dirty the middle page and release it. It is now the only evictable frame.
	frame2.data[0] = 42

	bs.Suite.Require().NoError(bs.bufferPool.UnpinPage(pageId2, true))

	victimFrameId := bs.bufferPool.pageTable[pageId2]

	frame4, pageId4, err := bs.bufferPool.NewPage()

	bs.Suite.Require().NoError(err)
	bs.Suite.Assert().Equal(1, frame4.pinCount)
	bs.Suite.Assert().Equal(victimFrameId, bs.bufferPool.pageTable[pageId4])

	// the evicted page's content must have been written back before the frame was reused.
	evictedPageData := make([]byte, PAGE_SIZE)

	bs.Suite.Require().NoError(bs.disk.readPage(pageId2, evictedPageData))
	bs.Suite.Assert().Equal(byte(42), evictedPageData[0])

	// the other pinned pages were untouched.
	_, resident := bs.bufferPool.pageTable[pageId1]
	bs.Suite.Assert().True(resident)

	_, resident = bs.bufferPool.pageTable[pageId2]
	bs.Suite.Assert().False(resident)

	bs.assertFrameOwnershipDisjoint()
}

func (bs *BufferPoolManagerTestSuite) TestFetchResidentPageSkipsDisk() {

	pageId := bs.newUnpinnedPage(7)

	frame, err := bs.bufferPool.FetchPage(pageId)

	bs.Suite.Require().NoError(err)
	bs.Suite.Assert().Equal(1, frame.pinCount)

	readsBefore := bs.disk.readCount

	frame, err = bs.bufferPool.FetchPage(pageId)

	bs.Suite.Require().NoError(err)
	bs.Suite.Assert().Equal(2, frame.pinCount)
	bs.Suite.Assert().Equal(readsBefore, bs.disk.readCount)
}

func (bs *BufferPoolManagerTestSuite) TestFetchEvictedPageRoundTrip() {

	pageId := bs.newUnpinnedPage(9)

	// pin the two remaining free frames, then allocate once more so the only
	// evictable frame, the one holding the dirty page above, is reclaimed.
	_, _, err := bs.bufferPool.NewPage()
	bs.Suite.Require().NoError(err)

	_, blockerPageId, err := bs.bufferPool.NewPage()
	bs.Suite.Require().NoError(err)

	_, _, err = bs.bufferPool.NewPage()
	bs.Suite.Require().NoError(err)

	_, resident := bs.bufferPool.pageTable[pageId]
	bs.Suite.Require().False(resident)

	// make room and fetch the evicted page back in from disk.
	bs.Suite.Require().NoError(bs.bufferPool.UnpinPage(blockerPageId, false))

	frame, err := bs.bufferPool.FetchPage(pageId)

	bs.Suite.Require().NoError(err)
	bs.Suite.Assert().Equal(byte(9), frame.data[0])
	bs.Suite.Assert().Equal(1, frame.pinCount)
	bs.Suite.Assert().False(frame.dirty)
}

func (bs *BufferPoolManagerTestSuite) TestFetchFailsWhenAllFramesPinned() {

	pageId := bs.newUnpinnedPage(1)

	for i := 0; i < 3; i++ {
		_, _, err := bs.bufferPool.NewPage()
		bs.Suite.Require().NoError(err)
	}

	_, err := bs.bufferPool.FetchPage(pageId)

	bs.Suite.Assert().ErrorIs(err, ErrBufferPoolFull)
}

// Unpinning a page whose pin count is already zero fails. One historical revision
// of this logic decremented only when positive and always reported success; the
// deterministic contract is failure, asserted here.
func (bs *BufferPoolManagerTestSuite) TestUnpinAlreadyUnpinnedFails() {

	pageId := bs.newUnpinnedPage(1)

	err := bs.bufferPool.UnpinPage(pageId, false)

	bs.Suite.Assert().ErrorIs(err, ErrPageNotPinned)

	frameId := bs.bufferPool.pageTable[pageId]

	bs.Suite.Assert().Equal(0, bs.bufferPool.frames[frameId].pinCount)
}

func (bs *BufferPoolManagerTestSuite) TestUnpinNotResident() {

	err := bs.bufferPool.UnpinPage(404, false)

	bs.Suite.Assert().ErrorIs(err, ErrPageNotResident)
}

func (bs *BufferPoolManagerTestSuite) TestDirtyFlagSticksAcrossUnpinners() {

	_, pageId, err := bs.bufferPool.NewPage()
	bs.Suite.Require().NoError(err)

	_, err = bs.bufferPool.FetchPage(pageId)
	bs.Suite.Require().NoError(err)

	// the first unpinner dirtied the page, the second did not. The flag must survive.
	bs.Suite.Require().NoError(bs.bufferPool.UnpinPage(pageId, true))
	bs.Suite.Require().NoError(bs.bufferPool.UnpinPage(pageId, false))

	frameId := bs.bufferPool.pageTable[pageId]

	bs.Suite.Assert().True(bs.bufferPool.frames[frameId].dirty)
}

func (bs *BufferPoolManagerTestSuite) TestFlushPage() {

	frame, pageId, err := bs.bufferPool.NewPage()
	bs.Suite.Require().NoError(err)

	frame.data[0] = 77

	bs.Suite.Require().NoError(bs.bufferPool.UnpinPage(pageId, true))

	bs.Suite.Require().NoError(bs.bufferPool.FlushPage(pageId))

	pageData := make([]byte, PAGE_SIZE)

	bs.Suite.Require().NoError(bs.disk.readPage(pageId, pageData))
	bs.Suite.Assert().Equal(byte(77), pageData[0])

	frameId := bs.bufferPool.pageTable[pageId]

	bs.Suite.Assert().False(bs.bufferPool.frames[frameId].dirty)

	// flushing a clean resident page is a no-op that succeeds.
	writesBefore := bs.disk.writeCount

	bs.Suite.Assert().NoError(bs.bufferPool.FlushPage(pageId))
	bs.Suite.Assert().Equal(writesBefore, bs.disk.writeCount)

	// flushing a page that is not resident fails.
	bs.Suite.Assert().ErrorIs(bs.bufferPool.FlushPage(404), ErrPageNotResident)
}

func (bs *BufferPoolManagerTestSuite) TestFlushAllPages() {

	pageId1 := bs.newUnpinnedPage(1)
	pageId2 := bs.newUnpinnedPage(2)

	bs.Suite.Require().NoError(bs.bufferPool.FlushAllPages())

	pageData := make([]byte, PAGE_SIZE)

	bs.Suite.Require().NoError(bs.disk.readPage(pageId1, pageData))
	bs.Suite.Assert().Equal(byte(1), pageData[0])

	bs.Suite.Require().NoError(bs.disk.readPage(pageId2, pageData))
	bs.Suite.Assert().Equal(byte(2), pageData[0])

	for _, frame := range bs.bufferPool.frames {
		bs.Suite.Assert().False(frame.dirty)
	}
}

func (bs *BufferPoolManagerTestSuite) TestDeletePage() {

	frame, pageId, err := bs.bufferPool.NewPage()
	bs.Suite.Require().NoError(err)

	// the caller still holds a pin, deletion is refused.
	deleted, err := bs.bufferPool.DeletePage(pageId)

	bs.Suite.Require().NoError(err)
	bs.Suite.Assert().False(deleted)

	bs.Suite.Require().NoError(bs.bufferPool.UnpinPage(pageId, false))

	deleted, err = bs.bufferPool.DeletePage(pageId)

	bs.Suite.Require().NoError(err)
	bs.Suite.Assert().True(deleted)

	// the frame is unassigned: zeroed, off the page table, back on the free list, not evictable.
	_, resident := bs.bufferPool.pageTable[pageId]

	bs.Suite.Assert().False(resident)
	bs.Suite.Assert().Equal(3, len(bs.bufferPool.freeFrames))
	bs.Suite.Assert().Equal(0, bs.bufferPool.replacer.size())
	bs.Suite.Assert().True(bytes.Equal(frame.data, make([]byte, PAGE_SIZE)))

	// the page ID is reusable by the disk manager.
	_, reusedPageId, err := bs.bufferPool.NewPage()

	bs.Suite.Require().NoError(err)
	bs.Suite.Assert().Equal(pageId, reusedPageId)

	bs.assertFrameOwnershipDisjoint()
}

func (bs *BufferPoolManagerTestSuite) TestDeletePageIdempotent() {

	// deleting a page that was never resident trivially succeeds, with no disk deallocation.
	deleted, err := bs.bufferPool.DeletePage(404)

	bs.Suite.Require().NoError(err)
	bs.Suite.Assert().True(deleted)
	bs.Suite.Assert().Equal(0, bs.disk.deallocatedPageIds.Cardinality())

	pageId := bs.newUnpinnedPage(1)

	deleted, err = bs.bufferPool.DeletePage(pageId)

	bs.Suite.Require().NoError(err)
	bs.Suite.Assert().True(deleted)

	deleted, err = bs.bufferPool.DeletePage(pageId)

	bs.Suite.Require().NoError(err)
	bs.Suite.Assert().True(deleted)
}

func (bs *BufferPoolManagerTestSuite) TestFreeFramesPreferredOverEviction() {

	pageId := bs.newUnpinnedPage(3)

	// two frames are still free, so the next allocations must not evict the resident page.
	for i := 0; i < 2; i++ {
		_, _, err := bs.bufferPool.NewPage()
		bs.Suite.Require().NoError(err)
	}

	_, resident := bs.bufferPool.pageTable[pageId]

	bs.Suite.Assert().True(resident)
	bs.Suite.Assert().Equal(0, len(bs.bufferPool.freeFrames))
	bs.Suite.Assert().Equal(1, bs.bufferPool.replacer.size())
}

func (bs *BufferPoolManagerTestSuite) TestCloseFlushesResidentPages() {

	pageId := bs.newUnpinnedPage(5)

	bs.Suite.Require().NoError(bs.bufferPool.Close())

	pageData := make([]byte, PAGE_SIZE)

	bs.Suite.Require().NoError(bs.disk.readPage(pageId, pageData))
	bs.Suite.Assert().Equal(byte(5), pageData[0])
}

func TestBufferPoolManager(t *testing.T) {

	suite.Run(t, new(BufferPoolManagerTestSuite))
}
