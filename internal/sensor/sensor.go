// Package sensor reads temperature and humidity with hardware abstraction.
package sensor

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrUnavailable means the sensor did not produce a usable reading.
var ErrUnavailable = errors.New("sensor unavailable")

// Reader reads one temperature (°C) / relative humidity (%) sample.
type Reader interface {
	Read() (temp, hum float64, err error)
}

// IIO reads a DHT-family sensor through the Linux IIO sysfs interface
// exposed by the dht11 kernel driver.
type IIO struct {
	dir string
}

// NewIIO uses the device directory, e.g. /sys/bus/iio/devices/iio:device0.
func NewIIO(dir string) (*IIO, error) {
	if _, err := os.Stat(filepath.Join(dir, "in_temp_input")); err != nil {
		return nil, fmt.Errorf("iio device %s: %w", dir, err)
	}
	return &IIO{dir: dir}, nil
}

// Read implements Reader. The driver reports milli-units; a failed
// conversion (checksum/timeout) surfaces as a read error.
func (s *IIO) Read() (float64, float64, error) {
	temp, err := readMilli(filepath.Join(s.dir, "in_temp_input"))
	if err != nil {
		return math.NaN(), math.NaN(), fmt.Errorf("%w: temperature: %v", ErrUnavailable, err)
	}
	hum, err := readMilli(filepath.Join(s.dir, "in_humidityrelative_input"))
	if err != nil {
		return math.NaN(), math.NaN(), fmt.Errorf("%w: humidity: %v", ErrUnavailable, err)
	}
	return temp, hum, nil
}

func readMilli(path string) (float64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, err
	}
	return float64(v) / 1000, nil
}

// Sample is one scripted reading.
type Sample struct {
	Temp float64
	Hum  float64
	Err  error
}

// FakeReader is a test double that returns scripted readings.
type FakeReader struct {
	Samples []Sample
	index   int
	// Reads counts Read calls.
	Reads int
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples ...Sample) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeReader) Read() (float64, float64, error) {
	f.Reads++
	if len(f.Samples) == 0 {
		return math.NaN(), math.NaN(), ErrUnavailable
	}
	s := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return s.Temp, s.Hum, s.Err
}
