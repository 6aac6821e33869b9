package main

import (
	"fmt"
)

func main() {

	engine, err := NewStorageEngine("ember.db", "ember.wal", 64)

	if err != nil {
		panic(err)
	}

	frame, pageId, err := engine.bufferPoolManager.NewPage()

	if err != nil {
		panic(err)
	}

	fmt.Printf("allocated page %d\n", pageId)

	copy(frame.Data(), []byte("hello"))

	if err = engine.bufferPoolManager.UnpinPage(pageId, true); err != nil {
		panic(err)
	}

	if err = engine.Checkpoint(); err != nil {
		panic(err)
	}

	if err = engine.Close(); err != nil {
		panic(err)
	}
}
