package bind_group_provider

import (
	"errors"
	"fmt"
)

// ErrWriteOutOfRange is returned for a staged write that does not fit its buffer.
var ErrWriteOutOfRange = errors.New("buffer write out of range")

// BufferWrite stages bytes for one binding of a provider at a byte offset.
type BufferWrite struct {
	Provider BindGroupProvider
	Binding  int
	Offset   uint64
	Data     []byte
}

// Check verifies the write targets a created buffer, is 4-byte aligned and ends inside it.
//
// Returns:
//   - error: a wrapped ErrWriteOutOfRange, or nil
func (w BufferWrite) Check() error {
	if w.Provider == nil || w.Provider.Buffer(w.Binding) == nil {
		return fmt.Errorf("binding %d has no buffer: %w", w.Binding, ErrWriteOutOfRange)
	}
	end := w.Offset + uint64(len(w.Data))
	if w.Offset%4 != 0 || len(w.Data)%4 != 0 {
		return fmt.Errorf("binding %d write [%d, %d) is not 4-byte aligned: %w", w.Binding, w.Offset, end, ErrWriteOutOfRange)
	}
	if size := w.Provider.BufferSize(w.Binding); end > size {
		return fmt.Errorf("binding %d write ends at %d past size %d: %w", w.Binding, end, size, ErrWriteOutOfRange)
	}
	return nil
}
