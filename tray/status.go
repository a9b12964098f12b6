package tray

import (
	"fmt"

	"github.com/normen/mooerctl/msg"
)

// Status is what the tray shows about the pedal.
type Status struct {
	Model   string
	Version string
	Index   int
	Name    string
}

// Apply updates the status from a pedal event and reports whether
// anything visible changed.
func (s *Status) Apply(event interface{}) bool {
	switch e := event.(type) {
	case msg.IdentityMessage:
		if s.Model == e.Model && s.Version == e.Version {
			return false
		}
		s.Model, s.Version = e.Model, e.Version
	case msg.PatchChangeMessage:
		if s.Index == e.Index && s.Name == e.Name {
			return false
		}
		s.Index, s.Name = e.Index, e.Name
	default:
		return false
	}
	return true
}

func (s *Status) String() string {
	if s.Model == "" {
		return "Not connected"
	}
	if s.Index < 0 {
		return fmt.Sprintf("%s %s", s.Model, s.Version)
	}
	return fmt.Sprintf("%s %s - %03d %s", s.Model, s.Version, s.Index, s.Name)
}
