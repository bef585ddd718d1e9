package core

import (
	"bytes"
	"sync"
)

// MockWriter collects writes from concurrent goroutines, such as workers
// sharing one logger in tests.
type MockWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *MockWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *MockWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

// Count reports how many times sub occurs in everything written so far.
func (w *MockWriter) Count(sub string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return bytes.Count(w.buf.Bytes(), []byte(sub))
}
