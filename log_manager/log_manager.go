package log_manager

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// LogManager appends write-ahead log records to a single log file. The buffer pool
// holds a handle to it so that a page's log records can be forced to disk before
// the page itself is flushed; the storage engine drives that ordering today.
type LogManager struct {

	// synchronizes appends and flushes.
	mutex *sync.Mutex

	file *os.File

	// nextLSN is the log sequence number assigned to the next appended record.
	nextLSN uint64
}

// record layout: 8 byte LSN, 4 byte payload length, payload.
const recordHeaderSize = 12

func NewLogManager(filePath string) (*LogManager, error) {

	f, err := os.OpenFile(filePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)

	if err != nil {
		return nil, err
	}

	slog.Info("Opened write-ahead log", "filePath", filePath, "function", "NewLogManager", "at", "LogManager")

	manager := &LogManager{
		mutex:   &sync.Mutex{},
		file:    f,
		nextLSN: 1,
	}

	lastLSN, err := manager.scanLastLSN()

	if err != nil {
		return nil, err
	}

	manager.nextLSN = lastLSN + 1

	return manager, nil
}

// AppendRecord appends a record to the log and returns the LSN assigned to it.
// The record is buffered by the OS until Flush is called.
func (manager *LogManager) AppendRecord(payload []byte) (uint64, error) {

	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	record := make([]byte, recordHeaderSize+len(payload))

	lsn := manager.nextLSN

	binary.LittleEndian.PutUint64(record[0:8], lsn)
	binary.LittleEndian.PutUint32(record[8:12], uint32(len(payload)))
	copy(record[recordHeaderSize:], payload)

	n, err := manager.file.Write(record)

	if err != nil {
		return 0, err
	}

	if n != len(record) {
		return 0, fmt.Errorf("incomplete log record write")
	}

	manager.nextLSN++

	return lsn, nil
}

// Flush forces all appended records to stable storage.
func (manager *LogManager) Flush() error {

	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	return manager.file.Sync()
}

// Close flushes the log and closes the file.
func (manager *LogManager) Close() error {

	slog.Info("Closing write-ahead log", "function", "Close", "at", "LogManager")

	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	if err := manager.file.Sync(); err != nil {
		return err
	}

	return manager.file.Close()
}

// scanLastLSN walks the record headers of an existing log file and returns the
// highest LSN found, so sequencing resumes where the previous run stopped.
// A record whose header or payload is truncated marks the end of the usable log.
func (manager *LogManager) scanLastLSN() (uint64, error) {

	stats, err := manager.file.Stat()

	if err != nil {
		return 0, err
	}

	fileSize := stats.Size()

	var lastLSN uint64
	var offset int64

	header := make([]byte, recordHeaderSize)

	for offset+recordHeaderSize <= fileSize {

		if _, err := manager.file.ReadAt(header, offset); err != nil {
			return 0, err
		}

		lsn := binary.LittleEndian.Uint64(header[0:8])
		payloadLength := int64(binary.LittleEndian.Uint32(header[8:12]))

		if offset+recordHeaderSize+payloadLength > fileSize {
			break
		}

		lastLSN = lsn
		offset += recordHeaderSize + payloadLength
	}

	return lastLSN, nil
}
