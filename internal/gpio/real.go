//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealReader reads the button from actual hardware using Linux GPIO character device.
type RealReader struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewRealReader requests pin on chip as an input with the given bias.
func NewRealReader(chipName string, pin int, bias Bias) (*RealReader, error) {
	biasOpt, err := biasOption(bias)
	if err != nil {
		return nil, err
	}

	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	line, err := chip.RequestLine(pin, gpiocdev.AsInput, biasOpt, gpiocdev.WithConsumer("ac-controller"))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request button pin %d: %w", pin, err)
	}

	return &RealReader{chip: chip, line: line}, nil
}

func biasOption(b Bias) (gpiocdev.LineReqOption, error) {
	switch b {
	case BiasPullUp, "":
		return gpiocdev.WithPullUp, nil
	case BiasPullDown:
		return gpiocdev.WithPullDown, nil
	case BiasDisabled:
		return gpiocdev.WithBiasDisabled, nil
	}
	return nil, fmt.Errorf("unknown gpio bias %q", b)
}

// Read returns the raw line level.
func (r *RealReader) Read() (bool, error) {
	v, err := r.line.Value()
	if err != nil {
		return false, fmt.Errorf("read button pin: %w", err)
	}
	return v != 0, nil
}

// Close releases GPIO resources.
// The line is returned to a plain input with pull-down (matching Pi boot
// defaults) before closing.
func (r *RealReader) Close() error {
	var errs []error

	if r.line != nil {
		if err := r.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure button pin: %w", err))
		}
		if err := r.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close button pin: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
