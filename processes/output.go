package processes

import (
	"bytes"
	"strings"
	"sync"
	"time"
)

// OutputLine represents a single line written by a managed process.
type OutputLine struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
}

// OutputBuffer maintains a circular buffer of recent output lines.
// It implements io.Writer, so it can be passed as SpawnConfig.Stdout or Stderr
// to keep a process's output around for diagnostics.
type OutputBuffer struct {
	mu        sync.RWMutex
	lines     []OutputLine
	capacity  int
	nextID    int64
	partial   []byte
	callbacks []func(OutputLine)
}

// NewOutputBuffer creates a new output buffer with the specified capacity in lines
func NewOutputBuffer(capacity int) *OutputBuffer {
	if capacity <= 0 {
		capacity = 1000
	}
	return &OutputBuffer{
		lines:    make([]OutputLine, 0, capacity),
		capacity: capacity,
		nextID:   1,
	}
}

// Write splits p into lines and stores every complete one.
// An unterminated tail is kept until the next write completes it.
func (ob *OutputBuffer) Write(p []byte) (int, error) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	data := append(ob.partial, p...)
	for {
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		ob.addLine(strings.TrimSuffix(string(data[:idx]), "\r"))
		data = data[idx+1:]
	}
	ob.partial = append([]byte(nil), data...)
	return len(p), nil
}

// addLine must be called with mu held.
func (ob *OutputBuffer) addLine(text string) {
	line := OutputLine{
		ID:        ob.nextID,
		Timestamp: time.Now(),
		Text:      text,
	}

	if len(ob.lines) >= ob.capacity {
		// Remove oldest line
		ob.lines = ob.lines[1:]
	}
	ob.lines = append(ob.lines, line)
	ob.nextID++

	for _, callback := range ob.callbacks {
		go callback(line) // Run in goroutine to avoid blocking the writer
	}
}

// Lines returns the buffered lines, oldest first.
func (ob *OutputBuffer) Lines() []OutputLine {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	result := make([]OutputLine, len(ob.lines))
	copy(result, ob.lines)
	return result
}

// LinesFromID returns all lines with ID greater than the specified ID
func (ob *OutputBuffer) LinesFromID(fromID int64) []OutputLine {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	result := make([]OutputLine, 0)
	for _, line := range ob.lines {
		if line.ID > fromID {
			result = append(result, line)
		}
	}
	return result
}

// String returns the buffered lines joined by newlines, including an unterminated tail.
func (ob *OutputBuffer) String() string {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	var sb strings.Builder
	for _, line := range ob.lines {
		sb.WriteString(line.Text)
		sb.WriteByte('\n')
	}
	sb.Write(ob.partial)
	return sb.String()
}

// AddCallback adds a callback function to be called when a new line is stored
func (ob *OutputBuffer) AddCallback(callback func(OutputLine)) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.callbacks = append(ob.callbacks, callback)
}
