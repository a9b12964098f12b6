package layout

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"golang.org/x/image/riff"

	"github.com/normen/mooerctl/protocol"
)

var (
	waveType = riff.FourCC{'W', 'A', 'V', 'E'}
	dataID   = riff.FourCC{'d', 'a', 't', 'a'}
)

// WavData returns the contents of the data chunk of a RIFF wave file.
func WavData(b []byte) ([]byte, error) {
	form, r, err := riff.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", protocol.ErrUnsupportedFileFormat, err)
	}
	if form != waveType {
		return nil, fmt.Errorf("%w: RIFF form %q is not WAVE", protocol.ErrUnsupportedFileFormat, form[:])
	}
	for {
		id, _, chunk, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: no data chunk", protocol.ErrUnsupportedFileFormat)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", protocol.ErrUnsupportedFileFormat, err)
		}
		if id == dataID {
			return io.ReadAll(chunk)
		}
	}
}
