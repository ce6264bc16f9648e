package markitdown

import "context"

// ocrLimiter is a counting semaphore bounding total in-flight vision
// requests across the whole client pool.
type ocrLimiter struct {
	slots chan struct{}
}

func newOCRLimiter(capacity int) *ocrLimiter {
	return &ocrLimiter{slots: make(chan struct{}, capacity)}
}

// acquire blocks until a slot is free or ctx is done.
func (l *ocrLimiter) acquire(ctx context.Context) error {
	select {
	case l.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// release frees a slot. Every successful acquire must be paired with a
// release on all paths, including request failure, or remaining tasks
// deadlock on leaked capacity.
func (l *ocrLimiter) release() {
	<-l.slots
}
