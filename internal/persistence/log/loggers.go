// Package log persists the world's transfer and audit streams as
// zstd-compressed JSONL, one file per UTC hour. These files are the durable
// record of what moved; the sqlite index is rebuilt from the same stream and
// the ledger itself is never persisted.
package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"haulcraft.sim/internal/sim/world"
)

const stampLayout = "2006-01-02-15"

// rollingWriter appends JSON lines to <dir>/<stem>-<utc hour>.jsonl.zst,
// opening a new file whenever the hour rolls over. Every line is flushed
// through to the encoder so a crash loses at most the zstd frame in flight.
type rollingWriter struct {
	dir  string
	stem string
	now  func() time.Time // test hook

	mu    sync.Mutex
	stamp string
	file  *os.File
	zw    *zstd.Encoder
	buf   *bufio.Writer
	lines uint64
}

func newRollingWriter(dir, stem string) *rollingWriter {
	return &rollingWriter{dir: dir, stem: stem, now: time.Now}
}

func (rw *rollingWriter) append(v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return err
	}

	rw.mu.Lock()
	defer rw.mu.Unlock()

	if stamp := rw.now().UTC().Format(stampLayout); stamp != rw.stamp {
		if err := rw.roll(stamp); err != nil {
			return err
		}
	}
	if _, err := rw.buf.Write(line); err != nil {
		return err
	}
	if err := rw.buf.WriteByte('\n'); err != nil {
		return err
	}
	rw.lines++
	return rw.buf.Flush()
}

// roll closes the current hour's file and opens the next one.
func (rw *rollingWriter) roll(stamp string) error {
	if err := rw.teardown(); err != nil {
		return err
	}
	if err := os.MkdirAll(rw.dir, 0o755); err != nil {
		return err
	}
	name := filepath.Join(rw.dir, fmt.Sprintf("%s-%s.jsonl.zst", rw.stem, stamp))
	file, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	zw, err := zstd.NewWriter(file, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = file.Close()
		return err
	}
	rw.file, rw.zw, rw.buf, rw.stamp = file, zw, bufio.NewWriterSize(zw, 128*1024), stamp
	return nil
}

func (rw *rollingWriter) teardown() error {
	if rw.buf != nil {
		_ = rw.buf.Flush()
		rw.buf = nil
	}
	var err error
	if rw.zw != nil {
		err = rw.zw.Close()
		rw.zw = nil
	}
	if rw.file != nil {
		_ = rw.file.Close()
		rw.file = nil
	}
	return err
}

func (rw *rollingWriter) close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.teardown()
}

// Lines reports how many entries have been written since open.
func (rw *rollingWriter) Lines() uint64 {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.lines
}

// TransferLogger records every committed transfer under <worldDir>/transfers.
type TransferLogger struct{ rw *rollingWriter }

func NewTransferLogger(worldDir string) *TransferLogger {
	return &TransferLogger{rw: newRollingWriter(filepath.Join(worldDir, "transfers"), "transfers")}
}

func (l *TransferLogger) WriteTransfer(v world.TransferLogEntry) error { return l.rw.append(v) }
func (l *TransferLogger) Lines() uint64                                { return l.rw.Lines() }
func (l *TransferLogger) Close() error                                 { return l.rw.close() }

// AuditLogger records reserve/complete/cancel and build events under
// <worldDir>/audit.
type AuditLogger struct{ rw *rollingWriter }

func NewAuditLogger(worldDir string) *AuditLogger {
	return &AuditLogger{rw: newRollingWriter(filepath.Join(worldDir, "audit"), "audit")}
}

func (l *AuditLogger) WriteAudit(v world.AuditEntry) error { return l.rw.append(v) }
func (l *AuditLogger) Close() error                        { return l.rw.close() }
