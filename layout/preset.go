package layout

import "fmt"

const (
	PresetSize     = 0x200
	FilePresetSize = 100
	SavedPresets   = 200
)

// Preset is the active preset as the device sends it.
type Preset struct {
	FxOrder    [10]byte // ordering of the effects, excluding rhythm
	Size       uint16
	Name       [14]byte `json:"-"`
	FX         FX
	Distortion Distortion
	Amp        Amp
	Cab        Cab
	NoiseGate  NoiseGate
	Equalizer  Equalizer
	Modulator  Modulator
	Delay      Delay
	Reverb     Reverb
	Rhythm     Rhythm
	Unknown    [350]byte `json:"-"`
}

func (p *Preset) GetName() string {
	return cString(p.Name[:])
}

func (p *Preset) SetName(name string) {
	putName(p.Name[:], name)
}

// File form module blocks. All fields are single bytes.

type FileFX struct {
	Type, Enabled                byte
	Attack, Thresh, Ratio, Level byte
	_                            [2]byte
}

type FileDS struct {
	Type, Enabled      byte
	Volume, Tone, Gain byte
	_                  [3]byte
}

type FileAmp struct {
	Type, Enabled                      byte
	Gain, Bass, Mid, Treble, Pres, Mst byte
}

type FileCab struct {
	Type, Enabled byte
	P             [6]byte
}

// FilePreset is the compact preset form used in .mo files, backups and the
// saved preset list.
type FilePreset struct {
	FxOrder [10]byte
	Size    uint16
	Name    [16]byte
	FX      FileFX
	DS      FileDS
	Amp     FileAmp
	Cab     FileCab
	NS      [8]byte
	EQ      [8]byte
	Mod     [8]byte
	Delay   [8]byte
	Reverb  [8]byte
}

func (p *FilePreset) GetName() string {
	return cString(p.Name[:])
}

// PaddedPreset is a FilePreset padded to the device preset size.
type PaddedPreset struct {
	FilePreset
	Padding [PresetSize - FilePresetSize]byte
}

func (f FileFX) Device() FX {
	return FX{
		Enabled:  uint16(f.Enabled),
		Type:     uint16(f.Type),
		Q:        uint16(f.Attack),
		Position: uint16(f.Thresh),
		Peak:     uint16(f.Ratio),
		Level:    uint16(f.Level),
	}
}

func (f FileDS) Device() Distortion {
	return Distortion{
		Enabled: uint16(f.Enabled),
		Type:    uint16(f.Type),
		Volume:  uint16(f.Volume),
		Tone:    uint16(f.Tone),
		Gain:    uint16(f.Gain),
	}
}

func (f FileAmp) Device() Amp {
	return Amp{
		Enabled:  uint16(f.Enabled),
		Type:     uint16(f.Type),
		Gain:     uint16(f.Gain),
		Bass:     uint16(f.Bass),
		Mid:      uint16(f.Mid),
		Treble:   uint16(f.Treble),
		Presence: uint16(f.Pres),
		Master:   uint16(f.Mst),
	}
}

func (f FileCab) Device() Cab {
	return Cab{
		Enabled:  uint16(f.Enabled),
		Type:     uint16(f.Type),
		Mic:      uint16(f.P[0]),
		Center:   uint16(f.P[1]),
		Distance: uint16(f.P[2]),
		Tube:     uint16(f.P[3]),
	}
}

func init() {
	sizes := []struct {
		r    any
		size int
	}{
		{FX{}, 12},
		{Distortion{}, 10},
		{Amp{}, 16},
		{Cab{}, 12},
		{NoiseGate{}, 10},
		{Equalizer{}, 22},
		{Modulator{}, 14},
		{Delay{}, 16},
		{Reverb{}, 12},
		{Rhythm{}, 12},
		{Pedal{}, 7},
		{Preset{}, PresetSize},
		{FilePreset{}, FilePresetSize},
		{PaddedPreset{}, PresetSize},
		{MbfPreset{}, 0x222},
	}
	for _, s := range sizes {
		if n := Size(s.r); n != s.size {
			panic(fmt.Sprintf("layout: %T is %d bytes, want %d", s.r, n, s.size))
		}
	}
}
