package layout

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/normen/mooerctl/protocol"
)

// Device records are sequences of big-endian 16-bit values. They are
// encoded field by field with encoding/binary so host padding never leaks
// into the wire format.

// Module is a record that can be sent to the device as a setter.
type Module interface {
	Group() protocol.Group
}

type FX struct {
	Enabled, Type            uint16
	Q, Position, Peak, Level uint16
}

type Distortion struct {
	Enabled, Type      uint16
	Volume, Tone, Gain uint16
}

type Amp struct {
	Enabled, Type                             uint16
	Gain, Bass, Mid, Treble, Presence, Master uint16
}

type Cab struct {
	Enabled, Type         uint16
	Mic, Center, Distance uint16
	Tube                  uint16
}

type NoiseGate struct {
	Enabled, Type              uint16
	Attack, Release, Threshold uint16
}

type Equalizer struct {
	Enabled, Type uint16
	Bands         [6]uint16
	Unknown       [6]byte
}

type Modulator struct {
	Enabled, Type      uint16
	Rate, Level, Depth uint16
	P4, P5             uint16
}

type Delay struct {
	Enabled, Type                      uint16
	Level, Feedback, Time, Subdivision uint16
	P5, P6                             uint16
}

type Reverb struct {
	Enabled, Type uint16
	Params        [4]uint16
}

// Rhythm only carries BPM over USB, the rest lives in presets.
type Rhythm struct {
	BPM     uint16
	Enabled uint16
	Type    uint16
	Kind    uint16
	Volume  uint16
	Unknown uint16
}

// Pedal is the expression pedal assignment.
type Pedal struct {
	Module1, Param1 byte
	Module2, Param2 byte
	Unk             byte
	VolMin, VolMax  byte
}

// NewPedal returns a pedal assignment with the constant the device expects.
func NewPedal() Pedal {
	return Pedal{Unk: 5}
}

func (FX) Group() protocol.Group         { return protocol.FX }
func (Distortion) Group() protocol.Group { return protocol.DistortionOD }
func (Amp) Group() protocol.Group        { return protocol.Amp }
func (Cab) Group() protocol.Group        { return protocol.Cab }
func (NoiseGate) Group() protocol.Group  { return protocol.NoiseGate }
func (Equalizer) Group() protocol.Group  { return protocol.Equalizer }
func (Modulator) Group() protocol.Group  { return protocol.Modulator }
func (Delay) Group() protocol.Group      { return protocol.Delay }
func (Reverb) Group() protocol.Group     { return protocol.Reverb }
func (Rhythm) Group() protocol.Group     { return protocol.Rhythm }
func (Pedal) Group() protocol.Group      { return protocol.PedalAssignment }

// Size returns the encoded size of a record, or -1 if it is not fixed size.
func Size(r any) int {
	return binary.Size(r)
}

// Overlay decodes src into dst. dst must be a pointer to a record and src
// must be exactly as long as the encoded record.
func Overlay(dst any, src []byte) error {
	if n := binary.Size(dst); n < 0 || n != len(src) {
		return fmt.Errorf("%w: %T needs %d bytes, got %d", protocol.ErrSizeMismatch, dst, n, len(src))
	}
	return binary.Read(bytes.NewReader(src), binary.BigEndian, dst)
}

// Marshal encodes a record.
func Marshal(src any) []byte {
	var buf bytes.Buffer
	buf.Grow(binary.Size(src))
	// writes into a bytes.Buffer only fail for types without a fixed size
	if err := binary.Write(&buf, binary.BigEndian, src); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// CopyOut encodes src into dst, which must be exactly the record size.
func CopyOut(dst []byte, src any) error {
	if n := binary.Size(src); n < 0 || n != len(dst) {
		return fmt.Errorf("%w: %T needs %d bytes, got %d", protocol.ErrSizeMismatch, src, n, len(dst))
	}
	copy(dst, Marshal(src))
	return nil
}

// cString reads a fixed width name up to the first NUL.
func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// putName writes s into a fixed width, NUL padded field.
func putName(dst []byte, s string) {
	clear(dst)
	copy(dst, s)
}
