package device

import (
	"context"
	"errors"
	"testing"

	"github.com/normen/mooerctl/layout"
	"github.com/normen/mooerctl/msg"
	"github.com/normen/mooerctl/protocol"
)

func TestDispatchUpdatesState(t *testing.T) {
	s, _, l := newTestSession()

	feedMessage(s, []byte{byte(protocol.ActivePatch), 17})
	if s.ActiveIndex() != 17 || len(l.patches) != 1 || l.patches[0] != 17 {
		t.Errorf("active patch: index %d, events %v", s.ActiveIndex(), l.patches)
	}

	amp := layout.Amp{Enabled: 1, Type: 8, Gain: 70}
	feedMessage(s, append([]byte{byte(protocol.Amp)}, layout.Marshal(amp)...))
	if got := s.ActivePreset().Amp; got != amp {
		t.Errorf("amp = %+v", got)
	}

	// wrong size is logged and ignored
	feedMessage(s, []byte{byte(protocol.Amp), 1, 2, 3})
	if got := s.ActivePreset().Amp; got != amp {
		t.Errorf("amp changed by short frame: %+v", got)
	}

	preset := make([]byte, layout.PresetSize)
	copy(preset[12:], "Saved 4")
	feedMessage(s, append([]byte{byte(protocol.PatchSetting), 4}, preset...))
	if s.PresetName(4) != "Saved 4" || len(l.settings) != 1 {
		t.Errorf("patch setting: %q, events %v", s.PresetName(4), l.settings)
	}
	feedMessage(s, append([]byte{byte(protocol.PatchSetting), 200}, preset...))
	feedMessage(s, append([]byte{byte(protocol.PatchSetting), 5}, preset[:100]...))
	if len(l.settings) != 1 {
		t.Errorf("invalid patch settings were accepted: %v", l.settings)
	}

	names := make([]byte, layout.AmpModelNamesSize)
	copy(names, "MyAmp")
	feedMessage(s, append([]byte{byte(protocol.AmpModels)}, names...))
	n := s.AmpModelNames()
	if n.Name(0) != "MyAmp" {
		t.Errorf("amp names = %q", n.Name(0))
	}

	feedMessage(s, []byte{byte(protocol.Rhythm), 0, 120})
	if s.ActivePreset().Rhythm.BPM != 120 {
		t.Errorf("bpm = %d", s.ActivePreset().Rhythm.BPM)
	}

	feedMessage(s, []byte{byte(protocol.PedalAssignment), 1, 2, 3, 4, 5, 6, 7})
	if got := s.State().Pedal; got != (layout.Pedal{Module1: 1, Param1: 2, Module2: 3, Param2: 4, Unk: 5, VolMin: 6, VolMax: 7}) {
		t.Errorf("pedal = %+v", got)
	}

	active := make([]byte, layout.PresetSize)
	copy(active[12:], "Live")
	feedMessage(s, append([]byte{byte(protocol.Preset)}, active...))
	if p := s.ActivePreset(); p.GetName() != "Live" {
		t.Errorf("active preset name = %q", p.GetName())
	}

	// unknown groups are only logged
	feedMessage(s, []byte{0x77, 1, 2})
	if l.frames != 11 {
		t.Errorf("OnFrame called %d times", l.frames)
	}
}

func TestStrictChecksumDropsCorruptFrames(t *testing.T) {
	s, _, _ := newTestSession()
	s.StrictChecksum = true
	reports := frameReports([]byte{byte(protocol.ActivePatch), 9})
	reports[0][8] ^= 0xFF
	for _, r := range reports {
		s.HandleReport(r)
	}
	if s.ActiveIndex() != -1 {
		t.Errorf("corrupt frame applied, index %d", s.ActiveIndex())
	}
	feedMessage(s, []byte{byte(protocol.ActivePatch), 9})
	if s.ActiveIndex() != 9 {
		t.Errorf("valid frame dropped")
	}
}

func TestForwarder(t *testing.T) {
	s, _, _ := newTestSession()
	out := make(chan interface{}, 1)
	s.AddListener(NewForwarder(s, out))

	feedMessage(s, []byte{byte(protocol.ActivePatch), 3})
	m, ok := (<-out).(msg.PatchChangeMessage)
	if !ok || m.Index != 3 {
		t.Errorf("got %+v", m)
	}

	// a full channel drops instead of blocking
	feedMessage(s, []byte{byte(protocol.ActivePatch), 4})
	feedMessage(s, []byte{byte(protocol.ActivePatch), 5})
	if m := (<-out).(msg.PatchChangeMessage); m.Index != 4 {
		t.Errorf("got %+v", m)
	}
}

func TestForwarderAmpSettings(t *testing.T) {
	s, _, _ := newTestSession()
	out := make(chan interface{}, 2)
	s.AddListener(NewForwarder(s, out))

	rec := layout.Amp{Enabled: 1, Gain: 70, Treble: 40, Master: 30}
	feedMessage(s, append([]byte{byte(protocol.Amp)}, layout.Marshal(&rec)...))
	if m, ok := (<-out).(msg.SettingsChangedMessage); !ok || m.Group != byte(protocol.Amp) {
		t.Errorf("got %+v", m)
	}
	m, ok := (<-out).(msg.AmpSettingsMessage)
	if !ok || m != (msg.AmpSettingsMessage{Gain: 70, Treble: 40, Master: 30}) {
		t.Errorf("got %+v", m)
	}
}

func TestHandleRequests(t *testing.T) {
	ctx := context.Background()
	s, tx, _ := newTestSession()

	requests := []interface{}{
		msg.IdentifyRequest{},
		msg.PatchListRequest{},
		msg.MenuRequest{Menu: MenuCab},
		msg.PresetChangeRequest{Index: 2},
		msg.AmpParamRequest{Param: "Gain", Value: 80},
	}
	for _, r := range requests {
		if err := s.Handle(ctx, r); err != nil {
			t.Fatalf("%T: %v", r, err)
		}
	}
	groups := []protocol.Group{
		protocol.IdentifyRequest,
		protocol.PatchList,
		protocol.Menu,
		protocol.Menu,
		protocol.ActivePatch,
		protocol.Menu,
		protocol.Amp,
	}
	msgs := tx.messages()
	if len(msgs) != len(groups) {
		t.Fatalf("got %d messages, want %d", len(msgs), len(groups))
	}
	for i, g := range groups {
		if msgs[i].Group != g {
			t.Errorf("message %d = %v, want %v", i, msgs[i].Group, g)
		}
	}
	if s.ActivePreset().Amp.Gain != 80 {
		t.Errorf("gain = %d", s.ActivePreset().Amp.Gain)
	}

	if err := s.Handle(ctx, msg.AmpParamRequest{Param: "volume"}); !errors.Is(err, protocol.ErrInvalidParameter) {
		t.Errorf("unknown param err = %v", err)
	}
	if err := s.Handle(ctx, "bogus"); !errors.Is(err, protocol.ErrInvalidParameter) {
		t.Errorf("unknown request err = %v", err)
	}
}
