package device

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/normen/mooerctl/layout"
	"github.com/normen/mooerctl/msg"
	"github.com/normen/mooerctl/protocol"
)

// Serve executes requests posted by the bridges until ctx is done.
func (s *Session) Serve(ctx context.Context, requests <-chan interface{}) {
	for {
		select {
		case <-ctx.Done():
			log.Print("Ending device request loop")
			return
		case message := <-requests:
			if err := s.Handle(ctx, message); err != nil {
				log.Printf("%T failed: %v", message, err)
			}
		}
	}
}

// Handle executes a single request message.
func (s *Session) Handle(ctx context.Context, message interface{}) error {
	switch e := message.(type) {
	case msg.IdentifyRequest:
		return s.Identify(ctx)
	case msg.PatchListRequest:
		return s.RequestPatchList(ctx)
	case msg.PresetChangeRequest:
		return s.ChangePreset(ctx, e.Index)
	case msg.MenuRequest:
		return s.SwitchMenu(ctx, e.Menu)
	case msg.AmpParamRequest:
		return s.SetAmpParam(ctx, e.Param, e.Value)
	case msg.UploadRequest:
		return s.UploadFile(ctx, e.Path, e.Slot)
	}
	return fmt.Errorf("%w: unknown request %T", protocol.ErrInvalidParameter, message)
}

// SetAmpParam changes one parameter of the active amplifier by name.
func (s *Session) SetAmpParam(ctx context.Context, param string, value uint16) error {
	amp := s.ActivePreset().Amp
	var p *uint16
	switch strings.ToLower(param) {
	case "gain":
		p = &amp.Gain
	case "bass":
		p = &amp.Bass
	case "mid":
		p = &amp.Mid
	case "treble":
		p = &amp.Treble
	case "presence":
		p = &amp.Presence
	case "master":
		p = &amp.Master
	case "enabled":
		p = &amp.Enabled
	case "type":
		if int(value) >= len(layout.AmpModels) {
			return fmt.Errorf("%w: amp type %d", protocol.ErrInvalidParameter, value)
		}
		p = &amp.Type
	default:
		return fmt.Errorf("%w: amp parameter %q", protocol.ErrInvalidParameter, param)
	}
	*p = value
	return s.SetAmplifier(ctx, amp)
}
