package cgc

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// Transport owns the byte-level I/O for one serial connection. Every
// receive step runs under a bounded timeout; an engine that blocks
// forever on a silent device would be a correctness bug, not a policy
// choice.
type Transport struct {
	mu        sync.RWMutex
	port      io.ReadWriteCloser
	timeout   time.Duration
	callCount uint64 // wire operations performed, for diagnostics and tests
}

// TimedReadWriteCloser is implemented by ports that support their own
// timeout handling (goserial ports do). When available the transport
// forwards its deadline instead of relying solely on the watchdog
// goroutine.
type TimedReadWriteCloser interface {
	io.ReadWriteCloser
	SetReadTimeout(timeout time.Duration) error
	SetWriteTimeout(timeout time.Duration) error
}

// DefaultTimeout applies when a setup does not specify one.
const DefaultTimeout = 1 * time.Second

// NewTransport wraps an open port.
func NewTransport(port io.ReadWriteCloser, timeout time.Duration) *Transport {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Transport{port: port, timeout: timeout}
}

// SetTimeout updates the per-step communication timeout.
func (t *Transport) SetTimeout(timeout time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = timeout
}

// Timeout returns the per-step communication timeout.
func (t *Transport) Timeout() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.timeout
}

// CallCount reports how many wire operations (writes and reads) the
// transport has performed since creation.
func (t *Transport) CallCount() uint64 {
	return atomic.LoadUint64(&t.callCount)
}

// WriteRaw writes data to the port, honoring the configured timeout.
func (t *Transport) WriteRaw(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("cannot write empty data")
	}
	t.mu.RLock()
	port := t.port
	timeout := t.timeout
	t.mu.RUnlock()
	if port == nil {
		return fmt.Errorf("port is closed")
	}
	atomic.AddUint64(&t.callCount, 1)

	if timed, ok := port.(TimedReadWriteCloser); ok {
		if err := timed.SetWriteTimeout(timeout); err != nil {
			return fmt.Errorf("failed to set write timeout: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		written := 0
		for written < len(data) {
			n, err := port.Write(data[written:])
			if err != nil {
				done <- fmt.Errorf("write failed after %d bytes: %v", written, err)
				return
			}
			written += n
		}
		done <- nil
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("write timeout after %v", timeout)
	}
}

// ReadFull reads exactly n bytes from the port or fails when the
// timeout elapses first.
func (t *Transport) ReadFull(n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	t.mu.RLock()
	port := t.port
	timeout := t.timeout
	t.mu.RUnlock()
	if port == nil {
		return nil, fmt.Errorf("port is closed")
	}
	atomic.AddUint64(&t.callCount, 1)

	if timed, ok := port.(TimedReadWriteCloser); ok {
		if err := timed.SetReadTimeout(timeout); err != nil {
			return nil, fmt.Errorf("failed to set read timeout: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	type result struct {
		buf []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		buf := make([]byte, n)
		_, err := io.ReadFull(port, buf)
		if err != nil {
			done <- result{nil, err}
			return
		}
		done <- result{buf, nil}
	}()

	select {
	case res := <-done:
		return res.buf, res.err
	case <-ctx.Done():
		return nil, context.DeadlineExceeded
	}
}

// ReadByte reads a single byte under the configured timeout.
func (t *Transport) ReadByte() (byte, error) {
	buf, err := t.ReadFull(1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

// Purge drains any stale bytes sitting in the receive path. Used to
// resynchronize the channel after a timed-out transaction, since the
// wire protocol has no abort primitive.
func (t *Transport) Purge() error {
	t.mu.RLock()
	port := t.port
	t.mu.RUnlock()
	if port == nil {
		return fmt.Errorf("port is closed")
	}
	atomic.AddUint64(&t.callCount, 1)

	const drainTimeout = 10 * time.Millisecond
	for {
		ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		done := make(chan error, 1)
		go func() {
			b := make([]byte, 64)
			_, err := port.Read(b)
			done <- err
		}()
		select {
		case err := <-done:
			cancel()
			if err != nil {
				return nil // nothing left to drain
			}
		case <-ctx.Done():
			cancel()
			return nil
		}
	}
}

// Close closes the underlying port.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	return err
}

// IsConnected reports whether the port is still attached.
func (t *Transport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.port != nil
}
