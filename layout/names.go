package layout

import (
	"bytes"
	"strings"

	"github.com/normen/mooerctl/protocol"
)

const (
	ampNameWidth = 15
	ampNameSlots = 10
	// AmpModelNamesSize is the size of the AmpModels message payload.
	AmpModelNamesSize = ampNameWidth * ampNameSlots
)

var AmpModels = []string{
	"65 US DS", "65 US TW", "59 US BASS", "US SONIC", "US BLUES CL",
	"US BLUES OD", "J800", "J900", "PLX100", "E650 CL", "E650 DS", "POWERBELL CL",
	"POWERBELL DS", "BLACKNIGHT CL", "BLACKNIGHT DS", "MARK III CL", "MARK III DS",
	"MARK V CL", "MARK V DS", "TRI REC CL", "TRI REC DS", "ROCK VRB CL",
	"ROCK VRB DS", "CITRUS 30", "CITRUS 50", "SLOW 100 CR",
	"SLOW 100 DS", "DR. ZEE 18 JR", "DR. ZEE RECK",
	"JET 100H CL", "JET 100H OD", "JAZZ 120", "UK30 CL", "UK 30 OD", "HWT 103",
	"PV 5050 CL", "PV 5050 DS", "REGAL TONE CL", "REGAL TONE OD1",
	"REGAL TONE OD2", "CAROL CL", "CAROL OD", "CARDEFF",
	"EV 5050 CL", "EV 5050 DS", "HT CLUB CL", "HT CLUB DS", "HUGEN CL", "HUGEN OD",
	"HUGEN DS", "KOCHE OD", "KOCHE DS", "ACOUSTIC 1", "ACOUSTIC 2", "ACOUSTIC 3",
	"USER 1", "USER 2", "USER 3", "USER 4", "USER 5", "USER 6", "USER 7", "USER 8",
	"USER 9", "USER 10",
}

var CabModels = []string{
	"US DLX 112", "US TWN 212", "US BASS 410", "Sonic 112", "Blues 112",
	"1960 412", "Eagle P412", "Eagle S412", "Mark 112", "Rec 412", "Citrus 412",
	"Citrus 212", "Slow 412", "Dr. Zee 112", "Dr. Zee 212", "Jazz 212", "UK 212",
	"HWT 412", "PV 5050 412", "Regal Tone 110", "Two Stones 212", "Cardeff 112",
	"EV 5050 412", "HT 412", "Gas Station 412", "Acoustic 112",
	"User 1", "User 2", "User 3", "User 4", "User 5", "User 6", "User 7", "User 8",
	"User 9", "User 10",
}

// AmpModelNames holds the names of the user amplifier slots.
type AmpModelNames [AmpModelNamesSize]byte

// NewAmpModelNames copies the first 150 bytes of b. Missing bytes stay zero.
func NewAmpModelNames(b []byte) AmpModelNames {
	var n AmpModelNames
	copy(n[:], b)
	return n
}

func (n *AmpModelNames) Len() int {
	return ampNameSlots
}

// Name returns slot i up to the first NUL, with trailing spaces removed.
func (n *AmpModelNames) Name(i int) string {
	return strings.TrimRight(cString(n.slot(i)), " ")
}

// SetName space pads name into slot i, truncating at the slot width.
func (n *AmpModelNames) SetName(i int, name string) {
	s := n.slot(i)
	copy(s, bytes.Repeat([]byte{' '}, ampNameWidth))
	copy(s, name)
}

func (n *AmpModelNames) slot(i int) []byte {
	return n[ampNameWidth*i : ampNameWidth*(i+1)]
}

// AmpModelName resolves an amplifier type to its display name, preferring
// the names reported by the device for user slots.
func AmpModelName(t int, user *AmpModelNames) string {
	if t < 0 || t >= len(AmpModels) {
		return ""
	}
	if u := t - protocol.FirstAmpSlot; u >= 0 && user != nil && u < ampNameSlots {
		if name := user.Name(u); name != "" {
			return name
		}
	}
	return AmpModels[t]
}

func CabModelName(t int) string {
	if t < 0 || t >= len(CabModels) {
		return ""
	}
	return CabModels[t]
}
