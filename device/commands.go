package device

import (
	"context"
	"fmt"

	"github.com/normen/mooerctl/layout"
	"github.com/normen/mooerctl/protocol"
)

// Menu pages shown on the device display.
const (
	MenuPreset byte = iota
	MenuFX
	MenuDistortion
	MenuAmp
	MenuCab
	MenuNoiseGate
	MenuEqualizer
	MenuModulator
	MenuDelay
	MenuReverb
)

// MaxModulatorType is the first modulator type the device cannot handle.
const MaxModulatorType = 22

var moduleMenus = map[protocol.Group]byte{
	protocol.FX:           MenuFX,
	protocol.DistortionOD: MenuDistortion,
	protocol.Amp:          MenuAmp,
	protocol.Cab:          MenuCab,
	protocol.NoiseGate:    MenuNoiseGate,
	protocol.Equalizer:    MenuEqualizer,
	protocol.Modulator:    MenuModulator,
	protocol.Delay:        MenuDelay,
	protocol.Reverb:       MenuReverb,
}

func (s *Session) send(ctx context.Context, m []byte) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.builder.SendCommand(ctx, m)
}

// Identify asks the device for its firmware version and model name.
func (s *Session) Identify(ctx context.Context) error {
	return s.send(ctx, []byte{byte(protocol.IdentifyRequest), 0, 0})
}

// Flush is sent after the identity reply, before requesting patches.
func (s *Session) Flush(ctx context.Context) error {
	m := make([]byte, protocol.ReportSize)
	copy(m, []byte{0, 1, 2, 3, 4})
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.builder.SendSplit(ctx, m)
}

// RequestPatchList makes the device send all saved presets.
func (s *Session) RequestPatchList(ctx context.Context) error {
	m := make([]byte, 8)
	m[0] = byte(protocol.PatchList)
	return s.send(ctx, m)
}

// ChangePreset activates saved preset index.
func (s *Session) ChangePreset(ctx context.Context, index int) error {
	if index < 0 || index >= layout.SavedPresets {
		return fmt.Errorf("%w: preset %d", protocol.ErrInvalidParameter, index)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	if err := s.switchMenuIfDifferent(ctx, MenuPreset); err != nil {
		return err
	}
	return s.builder.SendCommand(ctx, []byte{byte(protocol.ActivePatch), byte(index)})
}

// SwitchMenu shows a menu page on the device. Nothing is sent when the
// page is already shown.
func (s *Session) SwitchMenu(ctx context.Context, menu byte) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.switchMenuIfDifferent(ctx, menu)
}

// called with s.txMu held
func (s *Session) switchMenuIfDifferent(ctx context.Context, menu byte) error {
	s.mu.Lock()
	same := s.state.ActiveMenu == int(menu)
	s.mu.Unlock()
	if same {
		return nil
	}
	if err := s.builder.SendCommand(ctx, []byte{byte(protocol.Menu), menu}); err != nil {
		return err
	}
	s.mu.Lock()
	s.state.ActiveMenu = int(menu)
	s.mu.Unlock()
	return nil
}

// setModule switches to the module's menu page, sends the record and
// stores it in the active preset.
func (s *Session) setModule(ctx context.Context, rec layout.Module) error {
	g := rec.Group()
	s.txMu.Lock()
	defer s.txMu.Unlock()
	if err := s.switchMenuIfDifferent(ctx, moduleMenus[g]); err != nil {
		return err
	}
	data := layout.Marshal(rec)
	if err := s.builder.SendCommand(ctx, append([]byte{byte(g)}, data...)); err != nil {
		return err
	}
	s.mu.Lock()
	err := layout.Overlay(s.state.module(g), data)
	s.mu.Unlock()
	return err
}

func (s *Session) SetFX(ctx context.Context, fx layout.FX) error {
	return s.setModule(ctx, fx)
}

func (s *Session) SetDistortion(ctx context.Context, ds layout.Distortion) error {
	return s.setModule(ctx, ds)
}

func (s *Session) SetAmplifier(ctx context.Context, amp layout.Amp) error {
	return s.setModule(ctx, amp)
}

func (s *Session) SetCabinet(ctx context.Context, cab layout.Cab) error {
	return s.setModule(ctx, cab)
}

func (s *Session) SetNoiseGate(ctx context.Context, ns layout.NoiseGate) error {
	return s.setModule(ctx, ns)
}

func (s *Session) SetEqualizer(ctx context.Context, eq layout.Equalizer) error {
	return s.setModule(ctx, eq)
}

// SetModulator rejects types the device crashes on.
func (s *Session) SetModulator(ctx context.Context, mod layout.Modulator) error {
	if mod.Type >= MaxModulatorType {
		return fmt.Errorf("%w: modulator type %d must be below %d", protocol.ErrInvalidParameter, mod.Type, MaxModulatorType)
	}
	return s.setModule(ctx, mod)
}

func (s *Session) SetDelay(ctx context.Context, d layout.Delay) error {
	return s.setModule(ctx, d)
}

func (s *Session) SetReverb(ctx context.Context, r layout.Reverb) error {
	return s.setModule(ctx, r)
}

// SetExpressionPedal assigns the internal and external expression pedals.
func (s *Session) SetExpressionPedal(ctx context.Context, p layout.Pedal) error {
	m := append([]byte{byte(protocol.PedalAssignment)}, layout.Marshal(p)...)
	if err := s.send(ctx, m); err != nil {
		return err
	}
	s.mu.Lock()
	s.state.Pedal = p
	s.mu.Unlock()
	return nil
}
