package hid

import "time"

// readWithTimeout bounds a blocking read. When the timer fires first the
// read is abandoned and its result dropped; callers treat a timeout as fatal
// for the device, so the straggling goroutine only lives until Close.
func readWithTimeout(read func([]byte) (int, error), p []byte, timeout time.Duration) (int, error) {
	if timeout <= 0 {
		return read(p)
	}

	type result struct {
		n   int
		err error
	}
	buf := make([]byte, len(p))
	done := make(chan result, 1)
	go func() {
		n, err := read(buf)
		done <- result{n, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		n := copy(p, buf[:r.n])
		return n, r.err
	case <-timer.C:
		return 0, ErrTimeout
	}
}
