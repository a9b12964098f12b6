package transport

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/normen/mooerctl/protocol"
)

// readRetryDelay keeps a failing device from spinning the read loop.
const readRetryDelay = 10 * time.Millisecond

// Scheduler keeps one interrupt read in flight at all times and hands the
// received reports to a single consumer. Writes, control and bulk transfers
// run synchronously on the caller's goroutine.
type Scheduler struct {
	port    Port
	opts    Options
	reports chan []byte

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once
	closeErr  error
}

// Open opens the device and returns a scheduler that is not yet reading.
func Open(opts Options) (*Scheduler, error) {
	port, err := OpenPort(opts)
	if err != nil {
		return nil, err
	}
	return New(port, opts), nil
}

// New wraps an already opened port.
func New(port Port, opts Options) *Scheduler {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 3 * time.Second
	}
	if opts.Backlog <= 0 {
		opts.Backlog = 64
	}
	return &Scheduler{
		port:    port,
		opts:    opts,
		reports: make(chan []byte, opts.Backlog),
	}
}

// Reports delivers every received report. The channel is closed when the
// read loop ends.
func (s *Scheduler) Reports() <-chan []byte {
	return s.reports
}

// Start launches the read loop.
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		s.wg.Add(1)
		go s.readLoop(ctx)
	})
}

func (s *Scheduler) readLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.reports)
	buf := make([]byte, protocol.ReportSize)
	for {
		pollCtx, cancel := context.WithTimeout(ctx, s.opts.PollInterval)
		n, err := s.port.ReadReport(pollCtx, buf)
		cancel()
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if errors.Is(err, protocol.ErrTimeout) {
				// no data yet
				continue
			}
			log.Printf("USB read failed: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(readRetryDelay):
			}
			continue
		}
		if n == 0 {
			continue
		}
		report := make([]byte, n)
		copy(report, buf[:n])
		select {
		case s.reports <- report:
		case <-ctx.Done():
			return
		}
	}
}

// WriteReport sends one interrupt report, blocking up to the write timeout.
func (s *Scheduler) WriteReport(ctx context.Context, report []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.WriteTimeout)
	defer cancel()
	n, err := s.port.WriteReport(ctx, report)
	if err != nil {
		return err
	}
	if n != len(report) {
		return fmt.Errorf("%w: short write %d of %d bytes", protocol.ErrTransport, n, len(report))
	}
	return nil
}

// Control issues a control transfer on the default pipe.
func (s *Scheduler) Control(rType, request uint8, val, idx uint16, data []byte) error {
	_, err := s.port.Control(rType, request, val, idx, data)
	return err
}

// WriteBulk streams data to the bulk endpoint with the given alternate
// setting active on the bulk interface.
func (s *Scheduler) WriteBulk(ctx context.Context, alt int, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.WriteTimeout)
	defer cancel()
	_, err := s.port.WriteBulk(ctx, s.opts.BulkInterface, alt, s.opts.BulkEndpoint, data)
	return err
}

// Close cancels the outstanding read, waits for the read loop and releases
// the device.
func (s *Scheduler) Close() error {
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()
		s.closeErr = s.port.Close()
	})
	return s.closeErr
}
