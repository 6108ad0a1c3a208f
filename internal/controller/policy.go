package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/sweeney/ac-controller/internal/logic"
	"github.com/sweeney/ac-controller/internal/mqtt"
)

// policyStep samples the sensor at most once per interval, publishes the
// reading and replays the slot the threshold rule selects.
func (c *Controller) policyStep(ctx context.Context, now time.Time) error {
	if !c.policy.Due(now) {
		return nil
	}

	reading := logic.InvalidReading(now)
	temp, hum, err := c.sensor.Read()
	if err == nil {
		reading = logic.NewReading(temp, hum, now)
	}
	if !reading.Valid {
		c.counts.SensorFailures++
		reason := "reading is not a number"
		if err != nil {
			reason = err.Error()
		}
		c.diag(ctx, now, "sensor", "", "Failed to read from sensor: "+reason)
		return fmt.Errorf("%w: %s", ErrSensorUnavailable, reason)
	}

	if c.tracker != nil {
		c.tracker.SetReading(reading)
	}
	c.diag(ctx, now, "reading", "", fmt.Sprintf("Temp: %.1fC, Hum: %.1f%%", reading.Temperature, reading.Humidity))
	payload, err := mqtt.FormatStatus(reading)
	if err != nil {
		return err
	}
	if err := c.pub.PublishStatus(payload); err != nil {
		c.log.Warnw("publish status failed", "error", err)
	}

	switch c.policy.Decide(reading) {
	case logic.ActionActivate:
		return c.Replay(ctx, now, c.cfg.ActivateSlot)
	case logic.ActionDeactivate:
		return c.Replay(ctx, now, c.cfg.DeactivateSlot)
	}
	return nil
}
