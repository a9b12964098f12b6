package layout

import (
	"fmt"

	"github.com/normen/mooerctl/protocol"
)

const (
	BackupPresets = 199
	mbfTag        = "MOOER"
)

// MbfPreset is one entry of the backup preset table.
type MbfPreset struct {
	Index  uint16
	Preset PaddedPreset
	Pad    [0x20]byte
}

// Mbf is the layout of a .mbf backup file. The header points at the
// system block (0x400) and the preset header (0x531).
type Mbf struct {
	Manufacturer [8]byte
	Model        [32]byte
	Version      [3][7]byte
	Zero         [24]byte
	Buff         [4]byte
	Unknown      [0x3a7]byte
	System       [0x131]byte
	PresetHeader [0x11e]byte
	_            byte // presets are 2 byte aligned
	Presets      [BackupPresets]MbfPreset
}

func (m *Mbf) GetModel() string {
	return cString(m.Model[:])
}

func (m *Mbf) GetVersion() string {
	return cString(m.Version[0][:])
}

// LoadBackup decodes a .mbf file and validates its manufacturer tag.
func LoadBackup(data []byte) (*Mbf, error) {
	var m Mbf
	size := Size(&m)
	if len(data) < size {
		return nil, fmt.Errorf("%w: backup must be at least %d bytes, got %d", protocol.ErrUnsupportedFileFormat, size, len(data))
	}
	if err := Overlay(&m, data[:size]); err != nil {
		return nil, err
	}
	if tag := cString(m.Manufacturer[:]); tag != mbfTag {
		return nil, fmt.Errorf("%w: invalid backup header %q", protocol.ErrUnsupportedFileFormat, tag)
	}
	return &m, nil
}
