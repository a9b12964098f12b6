package protocol

import (
	"context"
	"encoding/binary"
	"fmt"
)

// MaxCommandSize is the longest message (group byte included) that fits a
// single report together with preamble, length and checksum.
const MaxCommandSize = MaxReportContent - headerSize + 1 - checksumSize

// ReportWriter writes one interrupt report to the device.
type ReportWriter interface {
	WriteReport(ctx context.Context, report []byte) error
}

// EncodeMessage frames m (group byte first) as
// 0xAA 0x55 | len(m) LE | m | checksum BE.
// The checksum covers the length field and m.
func EncodeMessage(m []byte) []byte {
	out := make([]byte, 0, len(m)+6)
	out = append(out, 0xAA, 0x55)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(m)))
	out = append(out, m...)
	return binary.BigEndian.AppendUint16(out, Checksum(out[2:]))
}

// EncodeCommand builds a single zero-padded report carrying m.
func EncodeCommand(m []byte) ([]byte, error) {
	if len(m) > MaxCommandSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLong, len(m))
	}
	msg := EncodeMessage(m)
	report := make([]byte, ReportSize)
	report[0] = byte(len(msg))
	copy(report[1:], msg)
	return report, nil
}

// SplitReports cuts msg into zero-padded reports of at most 63 content
// bytes, each prefixed with its content length.
func SplitReports(msg []byte) [][]byte {
	var reports [][]byte
	for len(msg) > 0 {
		n := min(len(msg), MaxReportContent)
		report := make([]byte, ReportSize)
		report[0] = byte(n)
		copy(report[1:], msg[:n])
		reports = append(reports, report)
		msg = msg[n:]
	}
	return reports
}

// Builder sends messages through a ReportWriter.
type Builder struct {
	w ReportWriter
}

func NewBuilder(w ReportWriter) *Builder {
	return &Builder{w: w}
}

// SendCommand sends m as a single report with header and checksum.
func (b *Builder) SendCommand(ctx context.Context, m []byte) error {
	report, err := EncodeCommand(m)
	if err != nil {
		return err
	}
	return b.w.WriteReport(ctx, report)
}

// SendSplit sends an already framed buffer across as many reports as needed.
func (b *Builder) SendSplit(ctx context.Context, msg []byte) error {
	for _, report := range SplitReports(msg) {
		if err := b.w.WriteReport(ctx, report); err != nil {
			return err
		}
	}
	return nil
}

// SendMessage frames m with header and checksum and sends it split.
func (b *Builder) SendMessage(ctx context.Context, m []byte) error {
	return b.SendSplit(ctx, EncodeMessage(m))
}
