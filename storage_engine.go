package main

import (
	"github.com/emberdb/EmberDB/buffer_pool_manager"
	"github.com/emberdb/EmberDB/log_manager"
)

type StorageEngine struct {
	bufferPoolManager buffer_pool_manager.BufferPoolManager
	walManager        *log_manager.LogManager
}

func NewStorageEngine(databaseFilePath string, walFilePath string, poolSize int) (*StorageEngine, error) {

	disk, err := buffer_pool_manager.NewDirectIODiskManager(databaseFilePath)

	if err != nil {
		return nil, err
	}

	walManager, err := log_manager.NewLogManager(walFilePath)

	if err != nil {
		return nil, err
	}

	replacer := buffer_pool_manager.NewClockReplacer(poolSize)

	bufferPoolManager := buffer_pool_manager.NewSimpleBufferPoolManager(poolSize, replacer, disk, walManager)

	return &StorageEngine{
		bufferPoolManager: bufferPoolManager,
		walManager:        walManager,
	}, nil
}

// Checkpoint forces the log to stable storage first, then writes back every resident dirty page.
// The ordering matters: a page must never reach disk before the log records describing its changes.
func (engine *StorageEngine) Checkpoint() error {

	if err := engine.walManager.Flush(); err != nil {
		return err
	}

	return engine.bufferPoolManager.FlushAllPages()
}

func (engine *StorageEngine) Close() error {

	if err := engine.walManager.Flush(); err != nil {
		return err
	}

	if err := engine.bufferPoolManager.Close(); err != nil {
		return err
	}

	return engine.walManager.Close()
}
