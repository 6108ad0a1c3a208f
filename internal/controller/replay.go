package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sweeney/ac-controller/internal/signal"
	"github.com/sweeney/ac-controller/internal/store"
)

// Replay transmits the signal stored in slot. An empty slot returns
// store.ErrEmptySlot and nothing is transmitted. Mode and cursor are untouched.
func (c *Controller) Replay(ctx context.Context, now time.Time, slot string) error {
	sig, err := c.store.Get(slot)
	if err != nil {
		if errors.Is(err, store.ErrEmptySlot) {
			c.counts.EmptySlots++
			c.diag(ctx, now, "empty_slot", slot, fmt.Sprintf("No signal learned for %s; nothing sent.", slot))
		} else {
			c.diag(ctx, now, "store_error", slot, fmt.Sprintf("Reading %s failed: %v", slot, err))
		}
		return err
	}

	c.diag(ctx, now, "replay", slot, fmt.Sprintf("Sending %s signal.", strings.ToUpper(slot)))
	switch v := sig.(type) {
	case signal.RawPulseTrain:
		err = c.tx.SendRaw(v.Durations, c.cfg.CarrierHz)
	case signal.ProtocolCode:
		err = c.tx.SendCode(v.Protocol, v.Code, v.Bits)
	default:
		err = fmt.Errorf("unsupported signal %T", sig)
	}
	if err != nil {
		c.diag(ctx, now, "transmit_error", slot, fmt.Sprintf("Sending %s failed: %v", slot, err))
		return fmt.Errorf("transmit %s: %w", slot, err)
	}

	c.counts.Replays++
	c.diag(ctx, now, "sent", slot, fmt.Sprintf("Sent IR @%s: %s", slot, sig))
	return nil
}
