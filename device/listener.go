package device

import (
	"log"

	"github.com/normen/mooerctl/msg"
	"github.com/normen/mooerctl/protocol"
)

// Listener receives session events. Methods are called from the dispatch
// goroutine after the state lock has been released and must not block.
type Listener interface {
	OnFrame(f *protocol.Frame)
	OnIdentify(id Identity)
	OnPatchChange(index int)
	OnPatchSetting(index int)
	OnSettingsChanged(g protocol.Group)
}

// Forwarder posts session events as msg structs to a channel. Events are
// dropped when the channel is full so a slow consumer never stalls USB.
type Forwarder struct {
	session *Session
	out     chan<- interface{}
}

func NewForwarder(s *Session, out chan<- interface{}) *Forwarder {
	return &Forwarder{session: s, out: out}
}

func (f *Forwarder) post(m interface{}) {
	select {
	case f.out <- m:
	default:
		log.Printf("Event channel full, dropping %T", m)
	}
}

func (f *Forwarder) OnFrame(*protocol.Frame) {}

func (f *Forwarder) OnIdentify(id Identity) {
	f.post(msg.IdentityMessage{Version: id.Version, Model: id.Model})
}

func (f *Forwarder) OnPatchChange(index int) {
	f.post(msg.PatchChangeMessage{Index: index, Name: f.session.PresetName(index)})
}

func (f *Forwarder) OnPatchSetting(index int) {
	f.post(msg.PatchSettingMessage{Index: index, Name: f.session.PresetName(index)})
}

func (f *Forwarder) OnSettingsChanged(g protocol.Group) {
	f.post(msg.SettingsChangedMessage{Group: byte(g), Name: g.String()})
	if g == protocol.Amp || g == protocol.ActivePatch {
		amp := f.session.ActivePreset().Amp
		f.post(msg.AmpSettingsMessage{Gain: amp.Gain, Treble: amp.Treble, Master: amp.Master})
	}
}
