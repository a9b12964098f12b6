package layout

import (
	"fmt"

	"github.com/normen/mooerctl/protocol"
)

const (
	MoFileSize  = 2048
	moPresetOff = 0x200
)

// PresetFromMo returns the device form preset bytes stored in a .mo file.
// The first 0x200 bytes of the file appear unused.
func PresetFromMo(mo []byte) ([]byte, error) {
	if len(mo) != MoFileSize {
		return nil, fmt.Errorf("%w: .mo must be %d bytes, got %d", protocol.ErrUnsupportedFileFormat, MoFileSize, len(mo))
	}
	return mo[moPresetOff : moPresetOff+PresetSize], nil
}

// ParseMo decodes the preset of a .mo file.
func ParseMo(mo []byte) (*PaddedPreset, error) {
	data, err := PresetFromMo(mo)
	if err != nil {
		return nil, err
	}
	var p PaddedPreset
	if err := Overlay(&p, data); err != nil {
		return nil, err
	}
	return &p, nil
}
