package protocol

import "encoding/binary"

// Report layout: Len(1) | Content(Len)
// The first report of a frame starts with the preamble:
// 0xAA 0x55 | MsgLen(2, LE) | Group(1) | Data...
// MsgLen counts the bytes starting with the group byte. The last two bytes
// of a frame carry a big-endian checksum that is not verified on receipt.

const (
	ReportSize       = 64
	MaxReportContent = ReportSize - 1
	Preamble         = 0x55AA // little-endian view of the wire bytes AA 55
	headerSize       = 5      // preamble + length + group
	checksumSize     = 2
)

// Frame is one complete message from the device.
type Frame struct {
	Group  Group
	Length uint16 // declared length, counted from the group byte
	Data   []byte // everything received after the group byte
}

// Index returns the first data byte. ok is false if the frame has no data.
func (f *Frame) Index() (idx byte, ok bool) {
	if len(f.Data) == 0 {
		return 0, false
	}
	return f.Data[0], true
}

// Body returns the data without the checksum trailer.
func (f *Frame) Body() []byte {
	if len(f.Data) < checksumSize {
		return nil
	}
	return f.Data[:len(f.Data)-checksumSize]
}

// Payload returns the data without the index byte and the checksum trailer.
func (f *Frame) Payload() []byte {
	b := f.Body()
	if len(b) < 1 {
		return nil
	}
	return b[1:]
}

// ChecksumOK recomputes the checksum over the declared length, the group and
// the body, and compares it with the trailer. The device never requires this
// and the reference behaviour accepts frames without checking.
func (f *Frame) ChecksumOK() bool {
	n := int(f.Length) - 1
	if n < 0 || len(f.Data) < n+checksumSize {
		return false
	}
	span := make([]byte, 0, 3+n)
	span = binary.LittleEndian.AppendUint16(span, f.Length)
	span = append(span, byte(f.Group))
	span = append(span, f.Data[:n]...)
	return Checksum(span) == binary.BigEndian.Uint16(f.Data[n:])
}

type assemblerState int

const (
	idle assemblerState = iota
	accumulating
)

// Assembler reconstructs frames from a stream of interrupt reports. It is
// not safe for concurrent use.
type Assembler struct {
	state    assemblerState
	declared uint16
	group    Group
	buf      []byte
}

// Push feeds one report, including its length prefix. It returns the
// completed frame once enough data has accumulated.
func (a *Assembler) Push(report []byte) (*Frame, bool) {
	if len(report) < 2 {
		return nil, false
	}
	n := int(report[0])
	content := report[1:]
	if n < len(content) {
		content = content[:n]
	}

	switch a.state {
	case idle:
		if len(content) < headerSize || binary.LittleEndian.Uint16(content) != Preamble {
			// garbage or the tail of a frame we never saw the start of
			return nil, false
		}
		a.declared = binary.LittleEndian.Uint16(content[2:4])
		a.group = Group(content[4])
		a.buf = append(a.buf[:0], content[headerSize:]...)
		a.state = accumulating
	case accumulating:
		a.buf = append(a.buf, content...)
	}

	// the group byte counts towards the declared length
	if 1+len(a.buf) < int(a.declared) {
		return nil, false
	}
	f := &Frame{
		Group:  a.group,
		Length: a.declared,
		Data:   append([]byte(nil), a.buf...),
	}
	a.Reset()
	return f, true
}

// Idle reports whether no partial frame is pending.
func (a *Assembler) Idle() bool {
	return a.state == idle
}

// Reset drops any partial frame.
func (a *Assembler) Reset() {
	a.state = idle
	a.declared = 0
	a.group = 0
	a.buf = a.buf[:0]
}
