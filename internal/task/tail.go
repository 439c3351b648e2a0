package task

import (
	"strings"
	"sync"
)

// tailWriter is an io.Writer that retains only the last max complete lines
// written to it. Producers can emit arbitrarily much diagnostic output;
// failure reports only ever embed this bounded tail.
type tailWriter struct {
	mu      sync.Mutex
	max     int
	lines   []string
	partial strings.Builder
}

func newTailWriter(max int) *tailWriter {
	return &tailWriter{max: max}
}

func (w *tailWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, b := range p {
		if b == '\n' {
			w.push(w.partial.String())
			w.partial.Reset()
			continue
		}
		w.partial.WriteByte(b)
	}
	return len(p), nil
}

func (w *tailWriter) push(line string) {
	w.lines = append(w.lines, line)
	if len(w.lines) > w.max {
		w.lines = w.lines[len(w.lines)-w.max:]
	}
}

// Lines returns the retained tail, including any trailing partial line.
func (w *tailWriter) Lines() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]string, len(w.lines), len(w.lines)+1)
	copy(out, w.lines)
	if w.partial.Len() > 0 {
		out = append(out, w.partial.String())
		if len(out) > w.max {
			out = out[len(out)-w.max:]
		}
	}
	return out
}
