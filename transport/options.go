package transport

import "time"

const (
	VendorID  = 0x0483
	ProductID = 0x5703
)

// Options select the device, its endpoints and the transfer timing.
type Options struct {
	VendorID  uint16
	ProductID uint16

	Config     int
	Interface  int
	AltSetting int

	// endpoint addresses, direction bit included for IN
	InEndpoint  int
	OutEndpoint int

	// the .gnr handshake streams zeros to this endpoint on BulkInterface
	BulkInterface int
	BulkEndpoint  int

	WriteTimeout time.Duration
	PollInterval time.Duration
	Backlog      int
}

func DefaultOptions() Options {
	return Options{
		VendorID:      VendorID,
		ProductID:     ProductID,
		Config:        1,
		Interface:     3,
		AltSetting:    0,
		InEndpoint:    0x81,
		OutEndpoint:   0x02,
		BulkInterface: 2,
		BulkEndpoint:  0x03,
		WriteTimeout:  3 * time.Second,
		PollInterval:  time.Second,
		Backlog:       64,
	}
}
