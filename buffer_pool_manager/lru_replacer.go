package buffer_pool_manager

import (
	"container/list"
	"sync"
)

// LRUReplacer is an exact-LRU alternative to the ClockReplacer. It orders
// candidate frames by the time they became evictable and always victimizes
// the oldest one.
type LRUReplacer struct {

	// synchronizes access to the list.
	mutex *sync.Mutex

	// keeps track of the order in which frames became eviction candidates.
	list *list.List

	// used to remove frames from the middle of the list.
	frameMap map[FrameID]*list.Element
}

func NewLRUReplacer() *LRUReplacer {

	return &LRUReplacer{
		list:     list.New(),
		frameMap: make(map[FrameID]*list.Element),
		mutex:    &sync.Mutex{},
	}
}

// removes and returns the ID of the frame at the back of the list, which is the oldest eviction candidate.
func (replacer *LRUReplacer) victim() (FrameID, bool) {

	replacer.mutex.Lock()
	defer replacer.mutex.Unlock()

	frameElement := replacer.list.Back()

	if frameElement == nil {
		return 0, false
	}

	frameId := replacer.list.Remove(frameElement).(FrameID)

	delete(replacer.frameMap, frameId)
	return frameId, true
}

// inserts the frame ID at the front of the list, it becomes the most recent eviction candidate.
// Idempotent if the frame is already a candidate.
func (replacer *LRUReplacer) insert(frameId FrameID) {

	replacer.mutex.Lock()
	defer replacer.mutex.Unlock()

	if _, exists := replacer.frameMap[frameId]; exists {
		return
	}

	frameElement := replacer.list.PushFront(frameId)
	replacer.frameMap[frameId] = frameElement
}

// removes frame from the list once its pin count > 0. Idempotent.
func (replacer *LRUReplacer) remove(frameId FrameID) {

	replacer.mutex.Lock()
	defer replacer.mutex.Unlock()

	frameElement, exists := replacer.frameMap[frameId]

	if !exists {
		return
	}

	replacer.list.Remove(frameElement)
	delete(replacer.frameMap, frameId)
}

// returns the number of frames currently managed by the replacer.
func (replacer *LRUReplacer) size() int {

	replacer.mutex.Lock()
	defer replacer.mutex.Unlock()

	return len(replacer.frameMap)
}
