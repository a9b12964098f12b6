package msg

// sent by the pedal session to the bridges

type IdentityMessage struct {
	Version string
	Model   string
}

type PatchChangeMessage struct {
	Index int
	Name  string
}

type PatchSettingMessage struct {
	Index int
	Name  string
}

type SettingsChangedMessage struct {
	Group byte
	Name  string
}

// AmpSettingsMessage carries the amplifier knobs of the active preset.
type AmpSettingsMessage struct {
	Gain   uint16
	Treble uint16
	Master uint16
}

type StatusMessage struct {
	Text string
}

// sent by the bridges to the pedal session

type IdentifyRequest struct {
}

type PatchListRequest struct {
}

type PresetChangeRequest struct {
	Index int
}

type MenuRequest struct {
	Menu byte
}

// AmpParamRequest sets one amplifier parameter of the active preset.
type AmpParamRequest struct {
	Param string
	Value uint16
}

type UploadRequest struct {
	Path string
	Slot int
}
