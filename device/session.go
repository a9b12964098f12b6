package device

import (
	"bytes"
	"context"
	"encoding/binary"
	"log"
	"strings"
	"sync"

	"github.com/normen/mooerctl/layout"
	"github.com/normen/mooerctl/protocol"
)

// Transport is what the session needs from the USB layer.
type Transport interface {
	protocol.ReportWriter
	Control(rType, request uint8, val, idx uint16, data []byte) error
	WriteBulk(ctx context.Context, alt int, data []byte) error
}

// Session is the command surface of the pedal. Commands run on the
// caller's goroutine; incoming reports are processed by Run.
type Session struct {
	// drop received frames whose trailer does not match
	StrictChecksum bool
	LogFrames      bool

	tx      Transport
	builder *protocol.Builder
	txMu    sync.Mutex

	mu          sync.Mutex
	state       State
	needPatches bool

	lmu       sync.RWMutex
	listeners []Listener

	asm     protocol.Assembler
	control chan func(context.Context)
}

func NewSession(tx Transport) *Session {
	return &Session{
		tx:          tx,
		builder:     protocol.NewBuilder(tx),
		state:       newState(),
		needPatches: true,
		control:     make(chan func(context.Context), 4),
	}
}

func (s *Session) AddListener(l Listener) {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Start sends the identify sequence the vendor software uses. The first
// identity reply triggers a flush and a patch list request.
func (s *Session) Start(ctx context.Context) error {
	for i := 0; i < 2; i++ {
		if err := s.Identify(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Run processes reports until the channel is closed or ctx is done.
// Follow-up commands triggered by frames run on a second goroutine so the
// dispatch path never writes to the device.
func (s *Session) Run(ctx context.Context, reports <-chan []byte) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.controlLoop(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case report, ok := <-reports:
			if !ok {
				log.Print("USB report channel closed")
				return
			}
			s.HandleReport(report)
		}
	}
}

func (s *Session) controlLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-s.control:
			f(ctx)
		}
	}
}

// HandleReport feeds one report to the frame assembler and dispatches a
// completed frame. Not safe for concurrent use.
func (s *Session) HandleReport(report []byte) {
	if f, ok := s.asm.Push(report); ok {
		s.handleFrame(f)
	}
}

func (s *Session) handleFrame(f *protocol.Frame) {
	if s.LogFrames {
		log.Printf("Frame %v, %d bytes", f.Group, len(f.Data))
	}
	if s.StrictChecksum && !f.ChecksumOK() {
		log.Printf("Dropping %v frame with bad checksum", f.Group)
		return
	}

	s.mu.Lock()
	notify := s.dispatch(f)
	s.mu.Unlock()

	s.lmu.RLock()
	defer s.lmu.RUnlock()
	for _, l := range s.listeners {
		l.OnFrame(f)
		for _, n := range notify {
			n(l)
		}
	}
}

// dispatch updates the state for one frame and returns the listener calls
// to make once the lock is released. Called with s.mu held.
func (s *Session) dispatch(f *protocol.Frame) []func(Listener) {
	body := f.Body()
	switch g := f.Group; {
	case g == protocol.Identify:
		if len(f.Data) < 17 {
			log.Printf("Identify frame too short (%d bytes)", len(f.Data))
			return nil
		}
		id := Identity{
			Version: field(f.Data[1:6]),
			Model:   field(f.Data[6:17]),
		}
		s.state.Identity = id
		if s.needPatches {
			s.needPatches = false
			s.post(s.downloadPatches)
		}
		return []func(Listener){func(l Listener) { l.OnIdentify(id) }}

	case g == protocol.IdentifyRequest:
		if len(f.Data) >= 18 {
			log.Printf("Firmware %s, model %s", field(f.Data[2:7]), field(f.Data[7:18]))
		}

	case g == protocol.CabinetUpload || g == protocol.AmpUpload:
		idx, _ := f.Index()
		log.Printf("%v acknowledged for %d", g, idx)

	case g == protocol.ActivePatch:
		idx, ok := f.Index()
		if !ok {
			return nil
		}
		s.state.ActiveIndex = int(idx)
		return []func(Listener){func(l Listener) { l.OnPatchChange(int(idx)) }}

	case g == protocol.AmpModels:
		if len(f.Data) < layout.AmpModelNamesSize {
			log.Printf("Amp model names too short (%d bytes)", len(f.Data))
			return nil
		}
		s.state.AmpNames = layout.NewAmpModelNames(f.Data)
		return settingsChanged(protocol.Amp)

	case g == protocol.PatchSetting:
		if len(body) != layout.PresetSize+1 {
			log.Printf("Received invalid preset of size %d", len(body))
			return nil
		}
		idx := int(body[0])
		if idx >= layout.SavedPresets {
			log.Printf("Received preset with invalid index %d", idx)
			return nil
		}
		if err := layout.Overlay(&s.state.SavedPresets[idx], f.Payload()); err != nil {
			log.Print(err)
			return nil
		}
		s.state.Loaded[idx] = true
		return []func(Listener){func(l Listener) { l.OnPatchSetting(idx) }}

	case g == protocol.Preset:
		if err := layout.Overlay(&s.state.ActivePreset, body); err != nil {
			log.Printf("Active preset ignored: %v", err)
			return nil
		}
		return settingsChanged(protocol.ActivePatch)

	case g.IsModule():
		if err := layout.Overlay(s.state.module(g), body); err != nil {
			log.Printf("%v settings ignored: %v", g, err)
			return nil
		}
		return settingsChanged(g)

	case g == protocol.Rhythm:
		if len(body) < 2 {
			return nil
		}
		s.state.ActivePreset.Rhythm.BPM = binary.BigEndian.Uint16(body)
		return settingsChanged(g)

	case g == protocol.Menu:
		if len(body) < 1 {
			return nil
		}
		s.state.ActiveMenu = int(body[0])

	case g == protocol.PedalAssignment:
		size := layout.Size(&s.state.Pedal)
		if len(body) < size {
			log.Printf("Pedal assignment too short (%d bytes)", len(body))
			return nil
		}
		if err := layout.Overlay(&s.state.Pedal, body[:size]); err != nil {
			log.Print(err)
			return nil
		}
		return settingsChanged(g)

	default:
		log.Printf("Received frame %v, size %d", g, len(f.Data))
	}
	return nil
}

func settingsChanged(g protocol.Group) []func(Listener) {
	return []func(Listener){func(l Listener) { l.OnSettingsChanged(g) }}
}

// post queues f on the control goroutine. Called with s.mu held, so it
// must not block.
func (s *Session) post(f func(context.Context)) {
	select {
	case s.control <- f:
	default:
		log.Print("Control queue full, dropping request")
	}
}

func (s *Session) downloadPatches(ctx context.Context) {
	if err := s.Flush(ctx); err != nil {
		log.Printf("Flush failed: %v", err)
		return
	}
	if err := s.RequestPatchList(ctx); err != nil {
		log.Printf("Patch list request failed: %v", err)
	}
}

// field trims a fixed width ASCII field.
func field(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return strings.TrimSpace(string(b))
}

// State returns a copy of the device state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Identity() Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Identity
}

func (s *Session) ActivePreset() layout.Preset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ActivePreset
}

func (s *Session) ActiveIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ActiveIndex
}

func (s *Session) ActiveMenu() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ActiveMenu
}

func (s *Session) PresetName(i int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.PresetName(i)
}

// SavedPreset returns preset i and whether it has been downloaded.
func (s *Session) SavedPreset(i int) (layout.PaddedPreset, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= layout.SavedPresets {
		return layout.PaddedPreset{}, false
	}
	return s.state.SavedPresets[i], s.state.Loaded[i]
}

func (s *Session) AmpModelNames() layout.AmpModelNames {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.AmpNames
}
