// Package serial reads electrode captures from a line-oriented device on a
// serial port. The device writes one bracketed list of six readings per line:
//
//	[12.1, 40.2, 33.0, 18.7, 90.0, 71.3]
//
// A capture is eeg.WindowLength consecutive lines.
package serial

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/jacobsa/go-serial/serial"
	"github.com/rs/zerolog"

	"eeg-action-service/internal/eeg"
	"eeg-action-service/internal/observability/logging"
	"eeg-action-service/internal/observability/metrics"
	"eeg-action-service/internal/service/labeler"
)

// Config holds serial port settings.
type Config struct {
	PortName string // e.g. /dev/ttyUSB0
	BaudRate uint
}

// DefaultConfig returns typical settings for a USB acquisition board.
func DefaultConfig() Config {
	return Config{
		PortName: "/dev/ttyUSB0",
		BaudRate: 115200,
	}
}

// lineBuffer bounds how many unread lines are kept between captures. Older
// lines are dropped, so a capture starts from at most one window of history.
const lineBuffer = eeg.WindowLength

var errPortClosed = errors.New("serial port closed")

type line struct {
	text string
	err  error
}

// Source implements source.Source over a serial device.
type Source struct {
	name    string
	port    io.ReadCloser
	logger  zerolog.Logger
	metrics *metrics.Metrics

	lines chan line

	mu         sync.Mutex // serializes captures
	electrodes [eeg.Channels]bool
	terminal   error

	closeOnce sync.Once
}

// Open opens the serial port and starts reading lines.
func Open(cfg Config) (*Source, error) {
	port, err := serial.Open(serial.OpenOptions{
		PortName:              cfg.PortName,
		BaudRate:              cfg.BaudRate,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.PortName, err)
	}

	s := New(cfg.PortName, port)
	s.logger.Info().Uint("baudRate", cfg.BaudRate).Msg("Serial source opened")
	return s, nil
}

// New wraps an already open device stream.
func New(name string, port io.ReadCloser) *Source {
	s := &Source{
		name:    name,
		port:    port,
		logger:  logging.WithSource(name),
		metrics: metrics.DefaultMetrics,
		lines:   make(chan line, lineBuffer),
	}
	go s.readLoop()
	return s
}

func (s *Source) readLoop() {
	defer close(s.lines)

	r := bufio.NewScanner(s.port)
	for r.Scan() {
		if text := r.Text(); text != "" {
			s.push(line{text: text})
		}
	}

	err := r.Err()
	if err == nil {
		err = io.EOF
	}
	s.push(line{err: err})
}

// push queues l, dropping the oldest line when nobody is capturing.
func (s *Source) push(l line) {
	for {
		select {
		case s.lines <- l:
			return
		default:
		}
		select {
		case <-s.lines:
		default:
		}
	}
}

// Read collects WindowLength lines into a channel-major block. Marker lines
// are skipped; malformed lines are skipped, logged and counted.
func (s *Source) Read(ctx context.Context) (eeg.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminal != nil {
		return eeg.Block{}, s.fail(s.terminal)
	}

	var b eeg.Block
	for i := 0; i < eeg.WindowLength; {
		var l line
		var ok bool
		select {
		case <-ctx.Done():
			return eeg.Block{}, s.fail(ctx.Err())
		case l, ok = <-s.lines:
		}
		if !ok {
			return eeg.Block{}, s.fail(errPortClosed)
		}
		if l.err != nil {
			s.terminal = l.err
			return eeg.Block{}, s.fail(l.err)
		}

		row, err := labeler.ParseRow(l.text)
		if err != nil {
			s.logger.Warn().Err(err).Str("line", l.text).Msg("Skipping malformed device line")
			s.metrics.RecordMalformedLine(s.name)
			continue
		}
		if row.IsMarker() {
			s.logger.Debug().Str("line", l.text).Msg("Skipping marker line")
			continue
		}
		if len(row.Values) != eeg.Channels {
			return eeg.Block{}, s.fail(&eeg.ChannelCountError{Source: s.name, Position: i, Got: len(row.Values)})
		}
		for c, v := range row.Values {
			b[c][i] = v
		}
		i++
	}

	s.updateElectrodes(&b)
	return b, nil
}

func (s *Source) fail(err error) error {
	return &eeg.DeviceReadError{Source: s.name, Err: err}
}

// updateElectrodes marks a channel inactive when every reading in the last
// capture was zero or NaN.
func (s *Source) updateElectrodes(b *eeg.Block) {
	for c := range b {
		active := false
		for _, v := range b[c] {
			if v != 0 && !math.IsNaN(v) {
				active = true
				break
			}
		}
		s.electrodes[c] = active
	}
}

// Electrodes reports electrode contact as seen in the last capture. Before
// the first capture every electrode reads inactive.
func (s *Source) Electrodes() [eeg.Channels]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.electrodes
}

// Name returns the port name.
func (s *Source) Name() string {
	return s.name
}

// Close closes the port, which ends the read loop.
func (s *Source) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.port.Close()
	})
	return err
}
