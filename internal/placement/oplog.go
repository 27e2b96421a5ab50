package placement

import (
	"fmt"
	"os"
	"sync"
	"time"
)

const (
	OpCopy = "COPY"

	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// OpLog appends one line per file operation to a plain text log
type OpLog struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewOpLog creates an OpLog writing to path
func NewOpLog(path string) *OpLog {
	return &OpLog{path: path, now: time.Now}
}

// Path returns the log file location
func (l *OpLog) Path() string {
	return l.path
}

// Record appends "[ts] OP | STATUS | src -> dst"
func (l *OpLog) Record(op, status, src, dst string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening operations log: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("[%s] %s | %s | %s -> %s\n", l.now().Format("2006-01-02 15:04:05"), op, status, src, dst)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("writing operations log: %w", err)
	}
	return nil
}
