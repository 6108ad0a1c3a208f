package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/ac-controller/internal/signal"
)

// captureStep polls the receiver once and stores an accepted capture in the
// slot under the learning cursor.
func (c *Controller) captureStep(ctx context.Context, now time.Time) error {
	capture, ok, err := c.rx.Poll()
	if err != nil {
		c.log.Warnw("ir receive failed", "error", err)
		return fmt.Errorf("poll receiver: %w", err)
	}
	if !ok {
		return nil
	}

	cursor := c.arbiter.Cursor()
	slot := c.slots[cursor]
	if !capture.Decoded || capture.Signal == nil {
		c.counts.DecodeFailures++
		c.diag(ctx, now, "decode_failure", slot, "Ignored unreadable IR signal: "+capture.Reason)
		return fmt.Errorf("%w: %s", ErrDecodeFailure, capture.Reason)
	}

	c.diag(ctx, now, "capture", slot, fmt.Sprintf("Received IR signal %d. Saving...", cursor+1))
	if err := c.store.Put(slot, capture.Signal); err != nil {
		if errors.Is(err, signal.ErrCapacity) || errors.Is(err, signal.ErrLayout) || errors.Is(err, signal.ErrCorrupt) {
			c.counts.DecodeFailures++
			c.diag(ctx, now, "decode_failure", slot, fmt.Sprintf("Rejected IR signal for %s: %v", slot, err))
			return fmt.Errorf("%w: %w", ErrDecodeFailure, err)
		}
		c.diag(ctx, now, "store_error", slot, fmt.Sprintf("Saving %s failed: %v", slot, err))
		return err
	}

	c.counts.Captures++
	if c.tracker != nil {
		c.tracker.SetLearned(slot)
	}
	c.diag(ctx, now, "saved", slot, savedMessage(capture.Signal, slot))

	if t, complete := c.arbiter.Advance(); complete {
		c.log.Infow("learning pass complete", "slots", len(c.slots), "to", t.To)
		c.diag(ctx, now, "mode", "", "All signals saved. Switching to AUTO.")
	}
	return nil
}

func savedMessage(s signal.Signal, slot string) string {
	switch v := s.(type) {
	case signal.RawPulseTrain:
		return fmt.Sprintf("Saved %d values @%s", len(v.Durations), slot)
	default:
		return fmt.Sprintf("Saved %s @%s", s, slot)
	}
}
