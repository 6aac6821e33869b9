package buffer_pool_manager

import "sync"

// keeps track of unpinned occupied frames, and decides which one is evicted next.
type Replacer interface {

	// victim selects a frame to evict based on the replacement policy.
	// Returns false if no frame is currently a candidate for eviction.
	victim() (FrameID, bool)

	// insert adds a frame to the replacer, marking it as a candidate for eviction.
	insert(frameId FrameID)

	// remove eliminates a frame from the replacer, typically when the frame is pinned.
	remove(frameId FrameID)

	// size returns the current number of frames managed by the replacer.
	size() int
}

// clockFrame holds the replacement state of a single frame slot.
type clockFrame struct {

	// inReplacer is true while the frame is a candidate for eviction.
	inReplacer bool

	// referenced is the second-chance bit. It is set whenever the frame becomes
	// a candidate, and cleared by a passing sweep before the frame can be evicted.
	referenced bool
}

// ClockReplacer implements the CLOCK (second chance) replacement policy.
// It approximates LRU with O(1) bookkeeping per pin/unpin: instead of ordering
// frames by access time, a circular sweep gives every referenced frame one
// chance to survive before it is evicted.
type ClockReplacer struct {

	// synchronizes access to the frame states and the clock hand.
	mutex *sync.Mutex

	frames    []clockFrame
	clockHand FrameID
}

func NewClockReplacer(numFrames int) *ClockReplacer {

	return &ClockReplacer{
		mutex:  &sync.Mutex{},
		frames: make([]clockFrame, numFrames),
	}
}

// victim sweeps the frames circularly, starting one position past the clock hand.
// A candidate frame whose referenced bit is clear is evicted on sight. A candidate
// frame whose referenced bit is set has the bit cleared and survives the sweep.
//
// The sweep mutates referenced bits as it goes, so a frame whose bit was cleared
// early in the sweep becomes eligible only after the hand has already moved past it.
// A second full sweep honoring the now-cleared bits covers that case, it is only
// attempted if the first sweep saw at least one candidate.
func (replacer *ClockReplacer) victim() (FrameID, bool) {

	replacer.mutex.Lock()
	defer replacer.mutex.Unlock()

	numFrames := FrameID(len(replacer.frames))

	candidateSeen := false

	for i := FrameID(0); i < numFrames; i++ {

		replacer.clockHand = (replacer.clockHand + 1) % numFrames
		frame := &replacer.frames[replacer.clockHand]

		if !frame.inReplacer {
			continue
		}

		if !frame.referenced {
			frame.inReplacer = false
			return replacer.clockHand, true
		}

		// second chance: clear the bit and keep sweeping.
		frame.referenced = false
		candidateSeen = true
	}

	if !candidateSeen {
		return 0, false
	}

	for i := FrameID(0); i < numFrames; i++ {

		replacer.clockHand = (replacer.clockHand + 1) % numFrames
		frame := &replacer.frames[replacer.clockHand]

		if frame.inReplacer && !frame.referenced {
			frame.inReplacer = false
			return replacer.clockHand, true
		}
	}

	return 0, false
}

// inserts the frame as an eviction candidate with its second-chance bit set.
// Idempotent if the frame is already a candidate.
func (replacer *ClockReplacer) insert(frameId FrameID) {

	replacer.mutex.Lock()
	defer replacer.mutex.Unlock()

	replacer.frames[frameId].inReplacer = true
	replacer.frames[frameId].referenced = true
}

// removes the frame from candidacy once its pin count > 0, or once it has been claimed as a victim.
// Idempotent.
func (replacer *ClockReplacer) remove(frameId FrameID) {

	replacer.mutex.Lock()
	defer replacer.mutex.Unlock()

	replacer.frames[frameId].inReplacer = false
}

// returns the number of frames currently tracked as eviction candidates.
func (replacer *ClockReplacer) size() int {

	replacer.mutex.Lock()
	defer replacer.mutex.Unlock()

	count := 0

	for _, frame := range replacer.frames {
		if frame.inReplacer {
			count++
		}
	}

	return count
}
