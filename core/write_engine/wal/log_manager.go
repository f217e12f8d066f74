package wal

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yan96in/neo4j/core/storage"
)

// --- Write-Ahead Log for committed transactions ---

// LSN is the 1-based position of a record in the log.
type LSN uint64

const InvalidLSN LSN = 0

// Every record is framed as [length uint32][crc32c uint32][payload].
const frameHeaderSize = 8

var (
	ErrLogClosed        = errors.New("transaction log is closed")
	ErrChecksumMismatch = errors.New("log record checksum mismatch, data corruption suspected")
	ErrCorruptSegment   = errors.New("corrupt log segment")
	ErrRecordTooLarge   = errors.New("log record larger than segment size limit")
	ErrLogFailed        = errors.New("transaction log failed, a partial write could not be removed")
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Config controls where and how the log is written.
type Config struct {
	Dir string `yaml:"dir"`
	// SegmentSizeLimit is the size at which the active segment is rolled.
	SegmentSizeLimit int64 `yaml:"segment_size_limit"`
	// BufferSize is the in-memory buffer used when SyncOnAppend is off.
	BufferSize int `yaml:"buffer_size"`
	// FlushInterval is how often the background flusher syncs buffered records.
	FlushInterval time.Duration `yaml:"flush_interval"`
	// SyncOnAppend forces every append to disk before it returns.
	SyncOnAppend bool `yaml:"sync_on_append"`
}

func (c Config) withDefaults() Config {
	if c.SegmentSizeLimit <= 0 {
		c.SegmentSizeLimit = 64 * 1024 * 1024
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 64 * 1024
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 100 * time.Millisecond
	}
	return c
}

// LogManager appends committed transaction records to segment files and
// recovers the last committed transaction id on startup.
type LogManager struct {
	cfg    Config
	logger *zap.Logger

	mu               sync.Mutex
	logFile          *os.File
	currentSegmentID uint64
	segmentOffset    int64 // bytes written to the active segment, buffer included
	currentLSN       LSN   // LSN of the last appended record
	lastTxID         uint64
	buffer           *bytes.Buffer
	closed           bool
	failed           error // set when a failed write could not be cut off the segment

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewLogManager opens (or creates) the log in cfg.Dir, replays every segment
// to find the last committed transaction, truncates a torn tail, and starts
// the background flusher.
func NewLogManager(cfg Config, logger *zap.Logger) (*LogManager, error) {
	cfg = cfg.withDefaults()
	if cfg.Dir == "" {
		return nil, fmt.Errorf("log directory must be set")
	}
	if cfg.SegmentSizeLimit < int64(cfg.BufferSize) {
		return nil, fmt.Errorf("log segment size limit (%d) must be greater than or equal to buffer size (%d)", cfg.SegmentSizeLimit, cfg.BufferSize)
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", cfg.Dir, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	lm := &LogManager{
		cfg:      cfg,
		logger:   logger.Named("wal"),
		buffer:   bytes.NewBuffer(make([]byte, 0, cfg.BufferSize)),
		stopChan: make(chan struct{}),
	}

	if err := lm.recover(); err != nil {
		return nil, fmt.Errorf("failed to recover transaction log: %w", err)
	}

	lm.wg.Add(1)
	go lm.flusher()

	lm.logger.Info("transaction log opened",
		zap.String("dir", cfg.Dir),
		zap.Uint64("segment", lm.currentSegmentID),
		zap.Uint64("lsn", uint64(lm.currentLSN)),
		zap.Uint64("last_tx_id", lm.lastTxID))
	return lm, nil
}

func (lm *LogManager) segmentPath(segmentID uint64) string {
	return filepath.Join(lm.cfg.Dir, fmt.Sprintf("log_%05d.log", segmentID))
}

// segments returns the ids of every segment in the log directory, ascending.
func (lm *LogManager) segments() ([]uint64, error) {
	files, err := os.ReadDir(lm.cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", lm.cfg.Dir, err)
	}
	var ids []uint64
	for _, file := range files {
		name := file.Name()
		if file.IsDir() || !strings.HasPrefix(name, "log_") || !strings.HasSuffix(name, ".log") {
			continue
		}
		id, err := strconv.ParseUint(strings.TrimSuffix(strings.TrimPrefix(name, "log_"), ".log"), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// recover scans all segments. A damaged frame in the newest segment is a torn
// write and is cut off; anywhere else it is corruption.
func (lm *LogManager) recover() error {
	ids, err := lm.segments()
	if err != nil {
		return err
	}

	for i, id := range ids {
		last := i == len(ids)-1
		validEnd, err := lm.scanSegment(id, func(rec storage.TransactionRecord) error {
			lm.currentLSN++
			if rec.TxID > lm.lastTxID {
				lm.lastTxID = rec.TxID
			}
			return nil
		})
		if err != nil && !last {
			return fmt.Errorf("%w: segment %d: %v", ErrCorruptSegment, id, err)
		}
		if last {
			lm.currentSegmentID = id
			lm.segmentOffset = validEnd
			if err != nil {
				lm.logger.Warn("truncating torn tail of transaction log",
					zap.Uint64("segment", id), zap.Int64("offset", validEnd), zap.Error(err))
				if terr := os.Truncate(lm.segmentPath(id), validEnd); terr != nil {
					return fmt.Errorf("failed to truncate segment %d: %w", id, terr)
				}
			}
		}
	}

	f, err := os.OpenFile(lm.segmentPath(lm.currentSegmentID), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log segment %d: %w", lm.currentSegmentID, err)
	}
	lm.logFile = f
	return nil
}

// scanSegment decodes every frame of a segment, returning the offset just past
// the last valid frame.
func (lm *LogManager) scanSegment(id uint64, fn func(storage.TransactionRecord) error) (int64, error) {
	f, err := os.Open(lm.segmentPath(id))
	if err != nil {
		return 0, err
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	var offset int64
	for {
		payload, err := readFrame(reader)
		if err == io.EOF {
			return offset, nil
		}
		if err != nil {
			return offset, err
		}
		var rec storage.TransactionRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return offset, fmt.Errorf("failed to decode transaction record: %w", err)
		}
		if err := fn(rec); err != nil {
			return offset, err
		}
		offset += int64(frameHeaderSize + len(payload))
	}
}

func readFrame(r io.Reader) ([]byte, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("short frame header: %w", err)
	}
	length := binary.LittleEndian.Uint32(header[0:4])
	sum := binary.LittleEndian.Uint32(header[4:8])

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("short frame payload: %w", err)
	}
	if crc32.Checksum(payload, castagnoli) != sum {
		return nil, ErrChecksumMismatch
	}
	return payload, nil
}

func encodeFrame(rec storage.TransactionRecord) ([]byte, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize transaction record: %w", err)
	}
	frame := make([]byte, frameHeaderSize+len(payload))
	binary.LittleEndian.PutUint32(frame[0:4], uint32(len(payload)))
	binary.LittleEndian.PutUint32(frame[4:8], crc32.Checksum(payload, castagnoli))
	copy(frame[frameHeaderSize:], payload)
	return frame, nil
}

// Append writes rec to the log and returns its LSN. With SyncOnAppend the
// record is on disk when Append returns. ctx is checked once the log mutex is
// held; after that point the append is not abandoned.
func (lm *LogManager) Append(ctx context.Context, rec storage.TransactionRecord) (LSN, error) {
	frame, err := encodeFrame(rec)
	if err != nil {
		return InvalidLSN, err
	}
	size := int64(len(frame))
	if size > lm.cfg.SegmentSizeLimit {
		return InvalidLSN, fmt.Errorf("%w: %d bytes", ErrRecordTooLarge, size)
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()

	if lm.closed {
		return InvalidLSN, ErrLogClosed
	}
	if lm.failed != nil {
		return InvalidLSN, fmt.Errorf("%w: %v", ErrLogFailed, lm.failed)
	}
	if err := ctx.Err(); err != nil {
		return InvalidLSN, err
	}

	if lm.buffer.Len()+len(frame) > lm.cfg.BufferSize {
		if err := lm.flushInternal(); err != nil {
			return InvalidLSN, fmt.Errorf("failed to flush log buffer before append: %w", err)
		}
	}
	if lm.segmentOffset+size > lm.cfg.SegmentSizeLimit {
		if err := lm.rollLogSegment(); err != nil {
			return InvalidLSN, fmt.Errorf("failed to roll log segment before append: %w", err)
		}
	}

	fileEnd := lm.segmentOffset - int64(lm.buffer.Len())
	var pending []byte
	if lm.cfg.SyncOnAppend {
		pending = append(pending, lm.buffer.Bytes()...)
	}

	lm.buffer.Write(frame)
	lm.segmentOffset += size

	if lm.cfg.SyncOnAppend {
		err := lm.flushInternal()
		if err == nil {
			if serr := lm.logFile.Sync(); serr != nil {
				err = fmt.Errorf("failed to sync log file: %w", serr)
			}
		}
		if err != nil {
			lm.discardAppend(fileEnd, pending)
			return InvalidLSN, err
		}
	}

	lm.currentLSN++
	if rec.TxID > lm.lastTxID {
		lm.lastTxID = rec.TxID
	}
	return lm.currentLSN, nil
}

// AppendTransaction appends rec, discarding its LSN.
func (lm *LogManager) AppendTransaction(ctx context.Context, rec storage.TransactionRecord) error {
	_, err := lm.Append(ctx, rec)
	return err
}

// LastTransactionID returns the highest transaction id in the log.
func (lm *LogManager) LastTransactionID() uint64 {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.lastTxID
}

// CurrentLSN returns the LSN of the last appended record.
func (lm *LogManager) CurrentLSN() LSN {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.currentLSN
}

// Sync writes buffered records and forces them to disk.
func (lm *LogManager) Sync() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if lm.closed {
		return ErrLogClosed
	}
	if lm.failed != nil {
		return fmt.Errorf("%w: %v", ErrLogFailed, lm.failed)
	}
	if err := lm.flushInternal(); err != nil {
		return err
	}
	return lm.logFile.Sync()
}

// ReadAll returns every record in the log, oldest first.
func (lm *LogManager) ReadAll() ([]storage.TransactionRecord, error) {
	if err := lm.Sync(); err != nil {
		return nil, err
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()

	ids, err := lm.segments()
	if err != nil {
		return nil, err
	}
	var records []storage.TransactionRecord
	for _, id := range ids {
		if _, err := lm.scanSegment(id, func(rec storage.TransactionRecord) error {
			records = append(records, rec)
			return nil
		}); err != nil {
			return nil, fmt.Errorf("%w: segment %d: %v", ErrCorruptSegment, id, err)
		}
	}
	return records, nil
}

// flushInternal writes the buffer to the active segment without syncing.
// This method MUST be called with lm.mu locked.
func (lm *LogManager) flushInternal() error {
	if lm.buffer.Len() == 0 {
		return nil
	}
	start := lm.segmentOffset - int64(lm.buffer.Len())
	n, err := lm.logFile.Write(lm.buffer.Bytes())
	if err == nil && n != lm.buffer.Len() {
		err = fmt.Errorf("short write to log file: expected %d, wrote %d", lm.buffer.Len(), n)
	} else if err != nil {
		err = fmt.Errorf("failed to write log buffer to file: %w", err)
	}
	if err != nil {
		// The buffer is kept for a retry, so the partial bytes must go.
		if n > 0 {
			lm.truncateSegment(start)
		}
		return err
	}
	lm.buffer.Reset()
	return nil
}

// discardAppend removes a frame whose append failed from both the buffer and
// the active segment, leaving the log as it was before the append.
// This method MUST be called with lm.mu locked.
func (lm *LogManager) discardAppend(fileEnd int64, pending []byte) {
	lm.buffer.Reset()
	lm.buffer.Write(pending)
	lm.segmentOffset = fileEnd + int64(len(pending))
	lm.truncateSegment(fileEnd)
}

// truncateSegment cuts the active segment back to size. If that fails the log
// is marked failed and every later append is refused.
// This method MUST be called with lm.mu locked.
func (lm *LogManager) truncateSegment(size int64) {
	if err := os.Truncate(lm.segmentPath(lm.currentSegmentID), size); err != nil {
		lm.failed = err
		lm.logger.Error("failed to cut partial write off transaction log, refusing further appends",
			zap.Uint64("segment", lm.currentSegmentID), zap.Int64("offset", size), zap.Error(err))
	}
}

// rollLogSegment syncs and closes the active segment and opens the next one.
// This method MUST be called with lm.mu locked.
func (lm *LogManager) rollLogSegment() error {
	if err := lm.flushInternal(); err != nil {
		return fmt.Errorf("failed to flush buffer before rolling segment: %w", err)
	}
	if err := lm.logFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync log file before rolling segment: %w", err)
	}
	if err := lm.logFile.Close(); err != nil {
		return fmt.Errorf("failed to close log segment %d: %w", lm.currentSegmentID, err)
	}

	lm.currentSegmentID++
	f, err := os.OpenFile(lm.segmentPath(lm.currentSegmentID), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open new log segment %d: %w", lm.currentSegmentID, err)
	}
	lm.logFile = f
	lm.segmentOffset = 0

	lm.logger.Info("rolled transaction log segment", zap.Uint64("segment", lm.currentSegmentID))
	return nil
}

// flusher periodically writes and syncs buffered records.
func (lm *LogManager) flusher() {
	defer lm.wg.Done()
	ticker := time.NewTicker(lm.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-lm.stopChan:
			return
		case <-ticker.C:
			lm.mu.Lock()
			if !lm.closed && lm.failed == nil && lm.buffer.Len() > 0 {
				if err := lm.flushInternal(); err != nil {
					lm.logger.Error("periodic log flush failed", zap.Error(err))
				} else if err := lm.logFile.Sync(); err != nil {
					lm.logger.Error("periodic log sync failed", zap.Error(err))
				}
			}
			lm.mu.Unlock()
		}
	}
}

// Close stops the flusher, writes what is buffered and closes the segment.
func (lm *LogManager) Close() error {
	lm.mu.Lock()
	if lm.closed {
		lm.mu.Unlock()
		return nil
	}
	lm.closed = true
	lm.mu.Unlock()

	close(lm.stopChan)
	lm.wg.Wait()

	lm.mu.Lock()
	defer lm.mu.Unlock()

	if lm.failed == nil {
		if err := lm.flushInternal(); err != nil {
			lm.logger.Error("final log flush failed", zap.Error(err))
		}
	}
	if err := lm.logFile.Sync(); err != nil {
		lm.logger.Error("final log sync failed", zap.Error(err))
	}
	if err := lm.logFile.Close(); err != nil {
		return fmt.Errorf("failed to close log segment %d: %w", lm.currentSegmentID, err)
	}
	lm.logger.Info("transaction log closed", zap.Uint64("lsn", uint64(lm.currentLSN)))
	return nil
}
