// Package gpio provides the toggle-button input with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Reader reads the raw level of the toggle input.
type Reader interface {
	// Read returns the raw line level (true = high). Debouncing and edge
	// selection happen in the logic package, not here.
	Read() (bool, error)
	// Close releases GPIO resources.
	Close() error
}

// Bias selects the line's internal resistor.
type Bias string

const (
	BiasPullUp   Bias = "pull-up"
	BiasPullDown Bias = "pull-down"
	BiasDisabled Bias = "disabled"
)

// Defaults (BCM numbering).
const (
	DefaultChip      = "gpiochip0"
	DefaultButtonPin = 18
)
