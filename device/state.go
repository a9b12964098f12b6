package device

import (
	"github.com/normen/mooerctl/layout"
	"github.com/normen/mooerctl/protocol"
)

type Identity struct {
	Version string
	Model   string
}

// State is everything the device has told us. It starts empty and is
// filled by incoming frames.
type State struct {
	Identity     Identity
	ActiveIndex  int // -1 until the device reports it
	ActiveMenu   int // -1 until known
	ActivePreset layout.Preset
	SavedPresets [layout.SavedPresets]layout.PaddedPreset
	Loaded       [layout.SavedPresets]bool
	AmpNames     layout.AmpModelNames
	Pedal        layout.Pedal
}

func newState() State {
	return State{
		ActiveIndex: -1,
		ActiveMenu:  -1,
		Pedal:       layout.NewPedal(),
	}
}

// module returns the record of the active preset that a module group
// updates, or nil for other groups.
func (s *State) module(g protocol.Group) any {
	p := &s.ActivePreset
	switch g {
	case protocol.FX:
		return &p.FX
	case protocol.DistortionOD:
		return &p.Distortion
	case protocol.Amp:
		return &p.Amp
	case protocol.Cab:
		return &p.Cab
	case protocol.NoiseGate:
		return &p.NoiseGate
	case protocol.Equalizer:
		return &p.Equalizer
	case protocol.Modulator:
		return &p.Modulator
	case protocol.Delay:
		return &p.Delay
	case protocol.Reverb:
		return &p.Reverb
	}
	return nil
}

// PresetName returns the name of a saved preset, or "" if it has not been
// downloaded yet.
func (s *State) PresetName(i int) string {
	if i < 0 || i >= len(s.SavedPresets) || !s.Loaded[i] {
		return ""
	}
	return s.SavedPresets[i].GetName()
}
