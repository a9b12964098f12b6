package device

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/normen/mooerctl/layout"
	"github.com/normen/mooerctl/protocol"
)

const (
	gnrBulkSize = 2646
	// class request, interface recipient
	gnrRequestType = 0x21
)

// uploadProfile sends the data planes split and closes with the name.
// before runs first under the same transmit lock.
func (s *Session) uploadProfile(ctx context.Context, p *protocol.Profile, before func(context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	if before != nil {
		if err := before(ctx); err != nil {
			return err
		}
	}
	for _, m := range p.DataMessages() {
		if err := s.builder.SendSplit(ctx, m); err != nil {
			return err
		}
	}
	return s.builder.SendCommand(ctx, p.NameMessage())
}

// UploadAmplifier loads an .amp profile into amplifier type slot. Slots
// below the first user slot are ignored.
func (s *Session) UploadAmplifier(ctx context.Context, slot int, name string, data []byte) error {
	return s.uploadAmp(ctx, slot, name, data, protocol.KindAmp, nil)
}

// UploadGNR loads the data section of a .gnr profile after the
// handshake the vendor software performs for this format.
func (s *Session) UploadGNR(ctx context.Context, slot int, name string, gnr []byte) error {
	if slot < protocol.FirstAmpSlot {
		log.Printf("Amp slot %d is not user writable", slot)
		return nil
	}
	g, err := layout.ParseGNR(gnr)
	if err != nil {
		return err
	}
	return s.uploadAmp(ctx, slot, name, g.Data, protocol.KindGNR, s.gnrHandshake)
}

// gnrHandshake expects txMu to be held.
func (s *Session) gnrHandshake(ctx context.Context) error {
	controls := []struct {
		val, idx uint16
		data     []byte
	}{
		{0x001, 2, []byte{0x00}},
		{0x102, 2, []byte{0x00, 0x0C}},
		{0x202, 2, []byte{0x00, 0x0C}},
		{0x001, 5, []byte{0x00}},
		{0x102, 5, []byte{0x00, 0xEC}},
		{0x202, 5, []byte{0x00, 0xEC}},
	}
	for _, c := range controls {
		if err := s.tx.Control(gnrRequestType, 1, c.val, c.idx, c.data); err != nil {
			return err
		}
	}
	return s.tx.WriteBulk(ctx, 1, make([]byte, gnrBulkSize))
}

func (s *Session) uploadAmp(ctx context.Context, slot int, name string, data []byte, kind protocol.AmpKind, before func(context.Context) error) error {
	dev := slot - protocol.FirstAmpSlot
	if dev < 0 {
		log.Printf("Amp slot %d is not user writable", slot)
		return nil
	}
	err := s.uploadProfile(ctx, &protocol.Profile{
		Group:        protocol.AmpUpload,
		Slot:         byte(dev),
		BytesPerWord: 4,
		Kind:         kind,
		Name:         name,
		Data:         data,
	}, before)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if dev < s.state.AmpNames.Len() {
		s.state.AmpNames.SetName(dev, name)
	}
	s.mu.Unlock()
	s.notify(func(l Listener) { l.OnSettingsChanged(protocol.Amp) })
	return nil
}

// UploadCabinet loads the samples of a .wav impulse response into cabinet
// type slot.
func (s *Session) UploadCabinet(ctx context.Context, slot int, name string, wav []byte) error {
	dev := slot - protocol.FirstCabSlot
	if dev < 0 {
		log.Printf("Cab slot %d is not user writable", slot)
		return nil
	}
	data, err := layout.WavData(wav)
	if err != nil {
		return err
	}
	err = s.uploadProfile(ctx, &protocol.Profile{
		Group:        protocol.CabinetUpload,
		Slot:         byte(dev),
		BytesPerWord: 3,
		Name:         name,
		Data:         data,
	}, nil)
	if err != nil {
		return err
	}
	s.notify(func(l Listener) { l.OnSettingsChanged(protocol.Cab) })
	return nil
}

// UploadPreset replaces the active preset with the one stored in a .mo file.
// The cached active preset takes over the name and the modules the file
// form describes.
func (s *Session) UploadPreset(ctx context.Context, mo []byte) error {
	p, err := layout.ParseMo(mo)
	if err != nil {
		return err
	}
	raw, err := layout.PresetFromMo(mo)
	if err != nil {
		return err
	}
	s.txMu.Lock()
	err = s.builder.SendMessage(ctx, append([]byte{byte(protocol.Preset)}, raw...))
	s.txMu.Unlock()
	if err != nil {
		return err
	}
	s.mu.Lock()
	active := &s.state.ActivePreset
	active.SetName(p.GetName())
	active.FX = p.FX.Device()
	active.Distortion = p.DS.Device()
	active.Amp = p.Amp.Device()
	active.Cab = p.Cab.Device()
	s.mu.Unlock()
	s.notify(func(l Listener) { l.OnSettingsChanged(protocol.ActivePatch) })
	return nil
}

// CheckUploadSlot reports an error when UploadFile would ignore path
// because slot is not a user slot for its file type.
func CheckUploadSlot(path string, slot int) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".amp", ".gnr":
		if slot < protocol.FirstAmpSlot {
			return fmt.Errorf("%w: amp slot %d, user slots start at %d", protocol.ErrInvalidParameter, slot, protocol.FirstAmpSlot)
		}
	case ".wav":
		if slot < protocol.FirstCabSlot {
			return fmt.Errorf("%w: cab slot %d, user slots start at %d", protocol.ErrInvalidParameter, slot, protocol.FirstCabSlot)
		}
	}
	return nil
}

// UploadFile picks the upload by file extension. slot is only used for
// amplifier and cabinet profiles. The profile name is the file name.
func (s *Session) UploadFile(ctx context.Context, path string, slot int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	ext := strings.ToLower(filepath.Ext(path))
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	switch ext {
	case ".amp":
		return s.UploadAmplifier(ctx, slot, name, data)
	case ".gnr":
		return s.UploadGNR(ctx, slot, name, data)
	case ".wav":
		return s.UploadCabinet(ctx, slot, name, data)
	case ".mo":
		return s.UploadPreset(ctx, data)
	case ".mbf":
		return s.LoadBackup(data)
	}
	return fmt.Errorf("%w: %q", protocol.ErrUnsupportedFileFormat, ext)
}

// LoadBackup fills the saved preset list from a .mbf backup. Nothing is
// sent to the device.
func (s *Session) LoadBackup(data []byte) error {
	mbf, err := layout.LoadBackup(data)
	if err != nil {
		return err
	}
	log.Printf("Backup of %s %s", mbf.GetModel(), mbf.GetVersion())
	var loaded []int
	s.mu.Lock()
	for i, p := range mbf.Presets {
		idx := int(p.Index)
		if idx >= layout.SavedPresets {
			idx = i
		}
		s.state.SavedPresets[idx] = p.Preset
		s.state.Loaded[idx] = true
		loaded = append(loaded, idx)
	}
	s.mu.Unlock()
	for _, idx := range loaded {
		s.notify(func(l Listener) { l.OnPatchSetting(idx) })
	}
	return nil
}

func (s *Session) notify(f func(Listener)) {
	s.lmu.RLock()
	defer s.lmu.RUnlock()
	for _, l := range s.listeners {
		f(l)
	}
}
