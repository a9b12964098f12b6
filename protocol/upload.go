package protocol

import (
	"strings"
)

const (
	// PlaneSize is the number of data bytes carried by one upload sub-message.
	PlaneSize = 512
	// NameSize is the width of a profile name on the device.
	NameSize = 15

	// FirstAmpSlot is the first user writable amplifier slot.
	FirstAmpSlot = 55
	// FirstCabSlot is the first user writable cabinet slot.
	FirstCabSlot = 26
)

// AmpKind is the profile kind byte sent with amplifier uploads.
type AmpKind byte

const (
	KindAmp AmpKind = 0x05
	KindGNR AmpKind = 0x15
)

// Profile describes one upload of sample data into a device slot.
type Profile struct {
	Group        Group   // AmpUpload or CabinetUpload
	Slot         byte    // device slot, already offset
	BytesPerWord int     // 4 for amplifiers, 3 for cabinets
	Kind         AmpKind // amplifiers only
	Name         string
	Data         []byte
}

// Interleave splits data into n planes of 512 bytes. Plane w (1-based)
// holds byte n-w of every n-byte sample. Short input is zero padded and
// long input truncated.
func Interleave(data []byte, n int) [][]byte {
	planes := make([][]byte, n)
	for i := range planes {
		p := make([]byte, PlaneSize)
		for s := 0; s < PlaneSize; s++ {
			if idx := n*s + (n - 1 - i); idx < len(data) {
				p[s] = data[idx]
			}
		}
		planes[i] = p
	}
	return planes
}

// Deinterleave reverses Interleave.
func Deinterleave(planes [][]byte) []byte {
	n := len(planes)
	out := make([]byte, n*PlaneSize)
	for i, p := range planes {
		for s := 0; s < PlaneSize && s < len(p); s++ {
			out[n*s+(n-1-i)] = p[s]
		}
	}
	return out
}

// PadName returns a 15 byte, space padded name without NULs.
func PadName(name string) []byte {
	name = strings.ReplaceAll(name, "\x00", " ")
	out := []byte(strings.Repeat(" ", NameSize))
	copy(out, name)
	return out
}

// header returns group, slot, word index and, for amplifiers, the kind byte.
func (p *Profile) header(word int) []byte {
	h := []byte{byte(p.Group), p.Slot, byte(word)}
	if p.Group == AmpUpload {
		h = append(h, byte(p.Kind))
	}
	return h
}

// DataMessages returns the framed sub-messages carrying the sample planes,
// each ready to be sent split across reports.
func (p *Profile) DataMessages() [][]byte {
	var msgs [][]byte
	for i, plane := range Interleave(p.Data, p.BytesPerWord) {
		m := append(p.header(i+1), plane...)
		msgs = append(msgs, EncodeMessage(m))
	}
	return msgs
}

// NameMessage returns the closing message carrying the profile name. It is
// sent as a single report command.
func (p *Profile) NameMessage() []byte {
	return append(p.header(p.BytesPerWord+1), PadName(p.Name)...)
}
