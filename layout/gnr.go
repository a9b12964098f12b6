package layout

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/normen/mooerctl/protocol"
)

// GNR file layout:
// Manufacturer(8, "mooerge") | sections...
// section: ID(4) | Size(4, LE) | Payload(Size)
// The "info" and "data" sections must both be present.

const gnrTag = "mooerge"

type GNR struct {
	Info []byte
	Data []byte
}

func ParseGNR(b []byte) (*GNR, error) {
	if len(b) < 8 || cString(b[:8]) != gnrTag {
		return nil, fmt.Errorf("%w: missing %q header", protocol.ErrUnsupportedFileFormat, gnrTag)
	}
	g := &GNR{}
	rest := b[8:]
	for len(rest) >= 8 {
		id := rest[:4]
		size := binary.LittleEndian.Uint32(rest[4:8])
		rest = rest[8:]
		if uint64(size) > uint64(len(rest)) {
			return nil, fmt.Errorf("%w: section %q overruns file", protocol.ErrUnsupportedFileFormat, id)
		}
		switch {
		case bytes.Equal(id, []byte("info")):
			g.Info = rest[:size]
		case bytes.Equal(id, []byte("data")):
			g.Data = rest[:size]
		}
		rest = rest[size:]
	}
	if g.Info == nil || g.Data == nil {
		return nil, fmt.Errorf("%w: gnr needs info and data sections", protocol.ErrUnsupportedFileFormat)
	}
	return g, nil
}
