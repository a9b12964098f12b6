package device

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/normen/mooerctl/layout"
	"github.com/normen/mooerctl/protocol"
)

type control struct {
	val, idx uint16
	data     []byte
}

type fakeTransport struct {
	mu        sync.Mutex
	reports   [][]byte
	controls  []control
	bulk      []int
	err       error
	afterBulk func()
}

func (f *fakeTransport) WriteReport(ctx context.Context, report []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.reports = append(f.reports, bytes.Clone(report))
	return nil
}

func (f *fakeTransport) Control(rType, request uint8, val, idx uint16, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.controls = append(f.controls, control{val, idx, bytes.Clone(data)})
	return nil
}

func (f *fakeTransport) WriteBulk(ctx context.Context, alt int, data []byte) error {
	f.mu.Lock()
	f.bulk = append(f.bulk, alt, len(data))
	after := f.afterBulk
	f.mu.Unlock()
	if after != nil {
		after()
	}
	return nil
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reports)
}

// messages reassembles everything written so far. Reports that do not
// start a frame, like the flush, are skipped.
func (f *fakeTransport) messages() []*protocol.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	var a protocol.Assembler
	var frames []*protocol.Frame
	for _, r := range f.reports {
		if fr, ok := a.Push(r); ok {
			frames = append(frames, fr)
		}
	}
	return frames
}

func frameReports(m []byte) [][]byte {
	return protocol.SplitReports(protocol.EncodeMessage(m))
}

func feedMessage(s *Session, m []byte) {
	for _, r := range frameReports(m) {
		s.HandleReport(r)
	}
}

type recordingListener struct {
	session  *Session
	ids      []Identity
	patches  []int
	settings []int
	changed  []protocol.Group
	frames   int
}

func (r *recordingListener) OnFrame(*protocol.Frame) { r.frames++ }
func (r *recordingListener) OnIdentify(id Identity)  { r.ids = append(r.ids, id) }
func (r *recordingListener) OnPatchChange(i int) {
	// reading state here would deadlock if the lock were still held
	_ = r.session.ActiveIndex()
	r.patches = append(r.patches, i)
}
func (r *recordingListener) OnPatchSetting(i int) { r.settings = append(r.settings, i) }
func (r *recordingListener) OnSettingsChanged(g protocol.Group) {
	r.changed = append(r.changed, g)
}

func newTestSession() (*Session, *fakeTransport, *recordingListener) {
	tx := &fakeTransport{}
	s := NewSession(tx)
	l := &recordingListener{session: s}
	s.AddListener(l)
	return s, tx, l
}

func TestSwitchMenuSuppression(t *testing.T) {
	ctx := context.Background()
	s, tx, _ := newTestSession()

	for _, step := range []struct {
		menu byte
		want int
	}{
		{3, 1},
		{3, 1},
		{4, 2},
		{4, 2},
		{3, 3},
	} {
		if err := s.SwitchMenu(ctx, step.menu); err != nil {
			t.Fatal(err)
		}
		if got := tx.count(); got != step.want {
			t.Fatalf("after menu %d: %d messages, want %d", step.menu, got, step.want)
		}
	}
	msgs := tx.messages()
	if msgs[0].Group != protocol.Menu || msgs[0].Body()[0] != 3 {
		t.Errorf("first message = %v % X", msgs[0].Group, msgs[0].Data)
	}
}

func TestMenuFrameUpdatesCache(t *testing.T) {
	s, tx, _ := newTestSession()
	feedMessage(s, []byte{byte(protocol.Menu), 5})
	if s.ActiveMenu() != 5 {
		t.Fatalf("ActiveMenu() = %d", s.ActiveMenu())
	}
	if err := s.SwitchMenu(context.Background(), 5); err != nil {
		t.Fatal(err)
	}
	if tx.count() != 0 {
		t.Error("menu already shown by the device was sent again")
	}
}

func TestSetModulatorTypeBound(t *testing.T) {
	ctx := context.Background()
	s, tx, _ := newTestSession()

	err := s.SetModulator(ctx, layout.Modulator{Enabled: 1, Type: 22})
	if !errors.Is(err, protocol.ErrInvalidParameter) {
		t.Fatalf("type 22 err = %v, want ErrInvalidParameter", err)
	}
	if tx.count() != 0 {
		t.Fatalf("type 22 sent %d reports", tx.count())
	}

	if err := s.SetModulator(ctx, layout.Modulator{Enabled: 1, Type: 21, Rate: 40}); err != nil {
		t.Fatalf("type 21 err = %v", err)
	}
	msgs := tx.messages()
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want menu and setter", len(msgs))
	}
	if msgs[0].Group != protocol.Menu || msgs[0].Body()[0] != MenuModulator {
		t.Errorf("first message not a switch to the modulator menu")
	}
	want := layout.Marshal(layout.Modulator{Enabled: 1, Type: 21, Rate: 40})
	if msgs[1].Group != protocol.Modulator || !bytes.Equal(msgs[1].Body(), want) {
		t.Errorf("setter = %v % X", msgs[1].Group, msgs[1].Body())
	}
	if got := s.ActivePreset().Modulator.Rate; got != 40 {
		t.Errorf("active preset rate = %d", got)
	}
}

func TestModuleSettersUseTheirMenu(t *testing.T) {
	ctx := context.Background()
	bands := [6]uint16{1, 2, 3, 4, 5, 6}
	tests := []struct {
		name string
		set  func(*Session) error
		menu byte
		g    protocol.Group
	}{
		{"fx", func(s *Session) error { return s.SetFX(ctx, layout.FX{Enabled: 1}) }, MenuFX, protocol.FX},
		{"distortion", func(s *Session) error { return s.SetDistortion(ctx, layout.Distortion{Gain: 5}) }, MenuDistortion, protocol.DistortionOD},
		{"amp", func(s *Session) error { return s.SetAmplifier(ctx, layout.Amp{Type: 55}) }, MenuAmp, protocol.Amp},
		{"cab", func(s *Session) error { return s.SetCabinet(ctx, layout.Cab{Mic: 2}) }, MenuCab, protocol.Cab},
		{"noise gate", func(s *Session) error { return s.SetNoiseGate(ctx, layout.NoiseGate{Threshold: 9}) }, MenuNoiseGate, protocol.NoiseGate},
		{"eq", func(s *Session) error { return s.SetEqualizer(ctx, layout.Equalizer{Bands: bands}) }, MenuEqualizer, protocol.Equalizer},
		{"delay", func(s *Session) error { return s.SetDelay(ctx, layout.Delay{Time: 300}) }, MenuDelay, protocol.Delay},
		{"reverb", func(s *Session) error { return s.SetReverb(ctx, layout.Reverb{Type: 3}) }, MenuReverb, protocol.Reverb},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, tx, _ := newTestSession()
			if err := tt.set(s); err != nil {
				t.Fatal(err)
			}
			msgs := tx.messages()
			if len(msgs) != 2 {
				t.Fatalf("got %d messages", len(msgs))
			}
			if msgs[0].Body()[0] != tt.menu {
				t.Errorf("menu = %d, want %d", msgs[0].Body()[0], tt.menu)
			}
			if msgs[1].Group != tt.g {
				t.Errorf("group = %v, want %v", msgs[1].Group, tt.g)
			}
		})
	}
}

func TestChangePreset(t *testing.T) {
	ctx := context.Background()
	s, tx, _ := newTestSession()
	if err := s.ChangePreset(ctx, 12); err != nil {
		t.Fatal(err)
	}
	msgs := tx.messages()
	if len(msgs) != 2 || msgs[0].Body()[0] != MenuPreset {
		t.Fatalf("expected a switch to the preset menu first")
	}
	if idx, _ := msgs[1].Index(); msgs[1].Group != protocol.ActivePatch || idx != 12 {
		t.Errorf("change = %v %d", msgs[1].Group, idx)
	}
	if err := s.ChangePreset(ctx, 200); !errors.Is(err, protocol.ErrInvalidParameter) {
		t.Errorf("index 200 err = %v", err)
	}
}

func TestSimpleCommands(t *testing.T) {
	ctx := context.Background()
	s, tx, _ := newTestSession()
	if err := s.Identify(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.RequestPatchList(ctx); err != nil {
		t.Fatal(err)
	}
	pedal := layout.NewPedal()
	pedal.Module1 = 3
	if err := s.SetExpressionPedal(ctx, pedal); err != nil {
		t.Fatal(err)
	}
	msgs := tx.messages()
	if len(msgs) != 3 {
		t.Fatalf("got %d messages", len(msgs))
	}
	if msgs[0].Group != protocol.IdentifyRequest || !bytes.Equal(msgs[0].Body(), []byte{0, 0}) {
		t.Errorf("identify = %v % X", msgs[0].Group, msgs[0].Body())
	}
	if msgs[1].Group != protocol.PatchList || len(msgs[1].Body()) != 7 {
		t.Errorf("patch list = %v % X", msgs[1].Group, msgs[1].Body())
	}
	if msgs[2].Group != protocol.PedalAssignment || !bytes.Equal(msgs[2].Body(), []byte{3, 0, 0, 0, 5, 0, 0}) {
		t.Errorf("pedal = %v % X", msgs[2].Group, msgs[2].Body())
	}

	n := tx.count()
	if err := s.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	flush := tx.reports[n:]
	if len(flush) != 2 || flush[0][0] != 63 || !bytes.Equal(flush[0][1:6], []byte{0, 1, 2, 3, 4}) || flush[1][0] != 1 {
		t.Errorf("flush reports = %v", flush)
	}
}

func TestCheckUploadSlot(t *testing.T) {
	tests := []struct {
		path string
		slot int
		ok   bool
	}{
		{"plexi.amp", 0, false},
		{"plexi.AMP", 55, true},
		{"plexi.gnr", 54, false},
		{"room.wav", 25, false},
		{"room.wav", 26, true},
		{"lead.mo", 0, true},
		{"all.mbf", 0, true},
	}
	for _, tt := range tests {
		err := CheckUploadSlot(tt.path, tt.slot)
		if (err == nil) != tt.ok {
			t.Errorf("CheckUploadSlot(%q, %d) = %v", tt.path, tt.slot, err)
		}
		if err != nil && !errors.Is(err, protocol.ErrInvalidParameter) {
			t.Errorf("CheckUploadSlot(%q, %d) = %v, want ErrInvalidParameter", tt.path, tt.slot, err)
		}
	}
}

func TestUploadAmplifierSlotGuard(t *testing.T) {
	ctx := context.Background()
	s, tx, l := newTestSession()

	if err := s.UploadAmplifier(ctx, 54, "nope", make([]byte, 2048)); err != nil {
		t.Fatal(err)
	}
	if tx.count() != 0 {
		t.Fatalf("slot 54 sent %d reports", tx.count())
	}

	data := make([]byte, 2048)
	for i := range data {
		data[i] = byte(i)
	}
	if err := s.UploadAmplifier(ctx, 55, "Plexi", data); err != nil {
		t.Fatal(err)
	}
	msgs := tx.messages()
	if len(msgs) != 5 {
		t.Fatalf("got %d messages, want 4 planes and a name", len(msgs))
	}
	var planes [][]byte
	for w, m := range msgs[:4] {
		b := m.Body()
		if m.Group != protocol.AmpUpload || b[0] != 0 || b[1] != byte(w+1) || b[2] != byte(protocol.KindAmp) {
			t.Fatalf("plane %d header = %v % X", w+1, m.Group, b[:3])
		}
		if !m.ChecksumOK() {
			t.Errorf("plane %d checksum", w+1)
		}
		planes = append(planes, b[3:])
	}
	if !bytes.Equal(protocol.Deinterleave(planes), data) {
		t.Error("planes do not restore the profile")
	}
	if name := msgs[4].Body(); !bytes.Equal(name, append([]byte{0, 5, 5}, []byte("Plexi          ")...)) {
		t.Errorf("name message = % X", name)
	}
	names := s.AmpModelNames()
	if names.Name(0) != "Plexi" {
		t.Errorf("amp name = %q", names.Name(0))
	}
	if len(l.changed) != 1 || l.changed[0] != protocol.Amp {
		t.Errorf("changed = %v", l.changed)
	}
}

func wavFile(samples []byte) []byte {
	chunk := func(id string, p []byte) []byte {
		b := binary.LittleEndian.AppendUint32([]byte(id), uint32(len(p)))
		return append(b, p...)
	}
	body := append([]byte("WAVE"), chunk("fmt ", make([]byte, 16))...)
	body = append(body, chunk("data", samples)...)
	return chunk("RIFF", body)
}

func TestUploadCabinet(t *testing.T) {
	ctx := context.Background()
	s, tx, _ := newTestSession()

	if err := s.UploadCabinet(ctx, 25, "x", wavFile(nil)); err != nil || tx.count() != 0 {
		t.Fatalf("slot 25: err %v, %d reports", err, tx.count())
	}
	samples := bytes.Repeat([]byte{1, 2, 3}, 512)
	if err := s.UploadCabinet(ctx, 27, "V30", wavFile(samples)); err != nil {
		t.Fatal(err)
	}
	msgs := tx.messages()
	if len(msgs) != 4 {
		t.Fatalf("got %d messages", len(msgs))
	}
	for w, m := range msgs[:3] {
		b := m.Body()
		if m.Group != protocol.CabinetUpload || b[0] != 1 || b[1] != byte(w+1) || len(b) != 2+protocol.PlaneSize {
			t.Errorf("plane %d = %v % X (%d bytes)", w+1, m.Group, b[:2], len(b))
		}
		if b[2] != byte(3-w) {
			t.Errorf("plane %d first byte = %d", w+1, b[2])
		}
	}
	if b := msgs[3].Body(); b[1] != 4 || string(b[2:]) != "V30            " {
		t.Errorf("name message = % X", b)
	}

	if err := s.UploadCabinet(ctx, 27, "x", []byte("not a wave")); !errors.Is(err, protocol.ErrUnsupportedFileFormat) {
		t.Errorf("err = %v", err)
	}
}

func TestUploadGNRHandshake(t *testing.T) {
	ctx := context.Background()
	s, tx, _ := newTestSession()

	gnr := []byte("mooerge\x00")
	for _, sec := range []struct {
		id string
		p  []byte
	}{{"info", []byte("amp")}, {"data", bytes.Repeat([]byte{9}, 2048)}} {
		gnr = append(gnr, sec.id...)
		gnr = binary.LittleEndian.AppendUint32(gnr, uint32(len(sec.p)))
		gnr = append(gnr, sec.p...)
	}
	// nothing else may be sent between the handshake and the data planes
	released := false
	tx.afterBulk = func() {
		if s.txMu.TryLock() {
			released = true
			s.txMu.Unlock()
		}
	}
	if err := s.UploadGNR(ctx, 57, "Plexi", gnr); err != nil {
		t.Fatal(err)
	}
	if released {
		t.Error("transmit lock released after the handshake")
	}
	if len(tx.controls) != 6 {
		t.Fatalf("got %d control transfers", len(tx.controls))
	}
	if c := tx.controls[4]; c.val != 0x102 || c.idx != 5 || !bytes.Equal(c.data, []byte{0, 0xEC}) {
		t.Errorf("control 5 = %+v", c)
	}
	if len(tx.bulk) != 2 || tx.bulk[0] != 1 || tx.bulk[1] != 2646 {
		t.Errorf("bulk = %v", tx.bulk)
	}
	msgs := tx.messages()
	if len(msgs) != 5 || msgs[0].Body()[0] != 2 || msgs[0].Body()[2] != byte(protocol.KindGNR) {
		t.Errorf("gnr upload messages wrong")
	}
}

func TestUploadPresetAndFile(t *testing.T) {
	ctx := context.Background()
	s, tx, _ := newTestSession()

	mo := make([]byte, layout.MoFileSize)
	copy(mo[0x200+12:], "Lead")
	mo[0x200+44], mo[0x200+45], mo[0x200+46] = 12, 1, 60 // amp type, enabled, gain
	dir := t.TempDir()
	path := filepath.Join(dir, "lead.MO")
	if err := os.WriteFile(path, mo, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.UploadFile(ctx, path, 0); err != nil {
		t.Fatal(err)
	}
	msgs := tx.messages()
	if len(msgs) != 1 || msgs[0].Group != protocol.Preset || !bytes.Equal(msgs[0].Body(), mo[0x200:0x400]) {
		t.Fatalf("preset upload not sent as one preset message")
	}
	if tx.count() != 9 {
		t.Errorf("preset upload used %d reports", tx.count())
	}
	active := s.ActivePreset()
	if active.GetName() != "Lead" || active.Amp.Type != 12 || active.Amp.Enabled != 1 || active.Amp.Gain != 60 {
		t.Errorf("active preset not refreshed: %q %+v", active.GetName(), active.Amp)
	}

	bad := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(bad, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.UploadFile(ctx, bad, 0); !errors.Is(err, protocol.ErrUnsupportedFileFormat) {
		t.Errorf("txt err = %v", err)
	}
	if err := s.UploadPreset(ctx, mo[:100]); !errors.Is(err, protocol.ErrUnsupportedFileFormat) {
		t.Errorf("short .mo err = %v", err)
	}
}

func TestTransportErrorsSurface(t *testing.T) {
	s, tx, _ := newTestSession()
	tx.err = protocol.ErrTransport
	if err := s.SetAmplifier(context.Background(), layout.Amp{}); !errors.Is(err, protocol.ErrTransport) {
		t.Errorf("err = %v", err)
	}
	// the failed menu switch must not be cached
	tx.err = nil
	if err := s.SetAmplifier(context.Background(), layout.Amp{}); err != nil {
		t.Fatal(err)
	}
	if len(tx.messages()) != 2 {
		t.Errorf("menu switch not retried")
	}
}

func TestLoadBackup(t *testing.T) {
	s, _, l := newTestSession()
	data := make([]byte, layout.Size(&layout.Mbf{}))
	copy(data, "MOOER")
	entry := 0x650 + 0x222
	binary.BigEndian.PutUint16(data[entry:], 1)
	copy(data[entry+2+12:], "Backup")
	if err := s.LoadBackup(data); err != nil {
		t.Fatal(err)
	}
	if s.PresetName(1) != "Backup" {
		t.Errorf("preset 1 = %q", s.PresetName(1))
	}
	if len(l.settings) != layout.BackupPresets {
		t.Errorf("got %d patch setting events", len(l.settings))
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRunIdentityTriggersPatchDownload(t *testing.T) {
	s, tx, l := newTestSession()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reports := make(chan []byte, 16)
	done := make(chan struct{})
	go func() {
		s.Run(ctx, reports)
		close(done)
	}()

	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	id := append([]byte{byte(protocol.Identify), 0}, []byte("2.0.4MOOER_GE200")...)
	for i := 0; i < 2; i++ {
		for _, r := range frameReports(id) {
			reports <- r
		}
	}

	waitFor(t, func() bool {
		for _, m := range tx.messages() {
			if m.Group == protocol.PatchList {
				return true
			}
		}
		return false
	})
	cancel()
	<-done

	var identifies, lists int
	for _, m := range tx.messages() {
		switch m.Group {
		case protocol.IdentifyRequest:
			identifies++
		case protocol.PatchList:
			lists++
		}
	}
	if identifies != 2 || lists != 1 {
		t.Errorf("identify requests %d, patch lists %d", identifies, lists)
	}
	if got := s.Identity(); got.Version != "2.0.4" || got.Model != "MOOER_GE200" {
		t.Errorf("Identity() = %+v", got)
	}
	if len(l.ids) != 2 {
		t.Errorf("OnIdentify called %d times", len(l.ids))
	}
}

func TestRunStopsWhenReportsClose(t *testing.T) {
	s, _, _ := newTestSession()
	reports := make(chan []byte)
	close(reports)
	done := make(chan struct{})
	go func() {
		s.Run(context.Background(), reports)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}
