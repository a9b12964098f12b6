package midictl

import (
	"log"

	"gitlab.com/gomidi/midi/v2"
)

// MidiState remembers what the controller was last told so repeated
// pedal events do not flood the port.
type MidiState struct {
	Channel  byte
	Program  int
	Controls map[byte]byte
	Debug    bool
}

func NewMidiState(channel byte) *MidiState {
	return &MidiState{
		Channel:  channel & 0x0F,
		Program:  -1,
		Controls: make(map[byte]byte),
	}
}

func (m *MidiState) Reset() {
	m.Program = -1
	clear(m.Controls)
}

// SetControl returns the ControlChange echoing an amp parameter on cc,
// false when cc is unassigned or the controller already shows the value.
func (m *MidiState) SetControl(cc int, param uint16) (midi.Message, bool) {
	if cc < 0 || cc > 127 {
		return nil, false
	}
	v := ParamToCc(param)
	if last, ok := m.Controls[byte(cc)]; ok && last == v {
		return nil, false
	}
	m.Controls[byte(cc)] = v
	return midi.ControlChange(m.Channel, uint8(cc), v), true
}

// SetProgram returns the ProgramChange to send for a preset index, false
// when it is redundant or outside the MIDI program range.
func (m *MidiState) SetProgram(index int) (midi.Message, bool) {
	if index < 0 || index > 127 {
		if m.Debug {
			log.Printf("Preset %d has no MIDI program", index)
		}
		return nil, false
	}
	if m.Program == index {
		return nil, false
	}
	m.Program = index
	return midi.ProgramChange(m.Channel, uint8(index)), true
}
