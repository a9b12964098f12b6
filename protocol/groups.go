package protocol

import "fmt"

// Group identifies the type of a protocol message. It is the first byte
// after the length field of every frame.
type Group byte

const (
	Identify        Group = 0x10
	Menu            Group = 0x82 // the currently active menu on the display
	Preset          Group = 0x83
	IdentifyRequest Group = 0x84 // also seen as a reply carrying firmware info
	FX              Group = 0x90
	DistortionOD    Group = 0x91
	Amp             Group = 0x93
	Cab             Group = 0x94
	NoiseGate       Group = 0x95
	Equalizer       Group = 0x96
	Modulator       Group = 0x97
	Delay           Group = 0x98
	Reverb          Group = 0x99
	PedalAssignment Group = 0xA3
	Rhythm          Group = 0xA4 // sent when pressing CTRL TAP
	PatchSetting    Group = 0xA5
	ActivePatch     Group = 0xA6
	PatchList       Group = 0xE0
	CabinetUpload   Group = 0xE1
	AmpUpload       Group = 0xE2
	AmpModels       Group = 0xE3 // names of the custom amp models
)

var groupNames = map[Group]string{
	Identify:        "Identify",
	Menu:            "Menu",
	Preset:          "Preset",
	IdentifyRequest: "IdentifyRequest",
	FX:              "FX",
	DistortionOD:    "DS/OD",
	Amp:             "AMP",
	Cab:             "CAB",
	NoiseGate:       "NS",
	Equalizer:       "EQ",
	Modulator:       "MOD",
	Delay:           "DELAY",
	Reverb:          "REVERB",
	PedalAssignment: "PedalAssignment",
	Rhythm:          "Rhythm",
	PatchSetting:    "PatchSetting",
	ActivePatch:     "ActivePatch",
	PatchList:       "PatchList",
	CabinetUpload:   "CabinetUpload",
	AmpUpload:       "AmpUpload",
	AmpModels:       "AmpModels",
}

func (g Group) String() string {
	if name, ok := groupNames[g]; ok {
		return name
	}
	return fmt.Sprintf("Group(0x%02X)", byte(g))
}

// IsModule reports whether the group carries one of the effect module records.
func (g Group) IsModule() bool {
	return g >= FX && g <= Reverb && g != 0x92
}
