package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/adgate/adgate/internal/core"
)

var _ core.Auditor = (*FileAuditor)(nil)

// FileAuditor appends decision records to a JSONL file, one object per
// line. Lines are flushed per entry so a crash loses at most the record
// being written. Reads go through offline tooling, not this process.
type FileAuditor struct {
	mu   sync.Mutex
	file *os.File
	buf  *bufio.Writer
}

func NewFileAuditor(filePath string) (*FileAuditor, error) {
	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening audit log file: %w", err)
	}
	return &FileAuditor{
		file: file,
		buf:  bufio.NewWriter(file),
	}, nil
}

func (f *FileAuditor) Log(entry core.AuditEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding audit entry: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := f.buf.Write(line); err != nil {
		return fmt.Errorf("writing audit entry: %w", err)
	}
	if err := f.buf.WriteByte('\n'); err != nil {
		return fmt.Errorf("writing audit entry: %w", err)
	}
	return f.buf.Flush()
}

func (f *FileAuditor) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.buf.Flush(); err != nil {
		_ = f.file.Close()
		return err
	}
	return f.file.Close()
}
