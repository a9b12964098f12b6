package transport

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/gousb"

	"github.com/normen/mooerctl/protocol"
)

// Port is the part of an open USB device the scheduler talks to.
type Port interface {
	ReadReport(ctx context.Context, buf []byte) (int, error)
	WriteReport(ctx context.Context, report []byte) (int, error)
	Control(rType, request uint8, val, idx uint16, data []byte) (int, error)
	WriteBulk(ctx context.Context, iface, alt, endpoint int, data []byte) (int, error)
	Close() error
}

type usbPort struct {
	opts  Options
	ctx   *gousb.Context
	dev   *gousb.Device
	cfg   *gousb.Config
	intf  *gousb.Interface
	inEp  *gousb.InEndpoint
	outEp *gousb.OutEndpoint
}

// OpenPort opens the pedal with gousb and claims its control interface.
// Kernel drivers are detached from every claimed interface.
func OpenPort(opts Options) (Port, error) {
	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(opts.VendorID), gousb.ID(opts.ProductID))
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("%w: open device: %v", protocol.ErrTransport, err)
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("%w: device %04x:%04x not found", protocol.ErrTransport, opts.VendorID, opts.ProductID)
	}

	if err := dev.SetAutoDetach(true); err != nil {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("%w: auto detach: %v", protocol.ErrTransport, err)
	}
	dev.ControlTimeout = opts.WriteTimeout

	cfg, err := dev.Config(opts.Config)
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("%w: config %d: %v", protocol.ErrTransport, opts.Config, err)
	}

	intf, err := cfg.Interface(opts.Interface, opts.AltSetting)
	if err != nil {
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("%w: claim interface %d: %v", protocol.ErrTransport, opts.Interface, err)
	}

	inEp, err := intf.InEndpoint(opts.InEndpoint & 0x0F)
	if err != nil {
		intf.Close()
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("%w: IN endpoint 0x%02x: %v", protocol.ErrTransport, opts.InEndpoint, err)
	}

	outEp, err := intf.OutEndpoint(opts.OutEndpoint & 0x0F)
	if err != nil {
		intf.Close()
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("%w: OUT endpoint 0x%02x: %v", protocol.ErrTransport, opts.OutEndpoint, err)
	}

	if product, err := dev.Product(); err == nil {
		log.Printf("USB device: %s (%s)", product, dev)
	}

	return &usbPort{
		opts:  opts,
		ctx:   ctx,
		dev:   dev,
		cfg:   cfg,
		intf:  intf,
		inEp:  inEp,
		outEp: outEp,
	}, nil
}

func (p *usbPort) ReadReport(ctx context.Context, buf []byte) (int, error) {
	n, err := p.inEp.ReadContext(ctx, buf)
	return n, mapError(ctx, err)
}

func (p *usbPort) WriteReport(ctx context.Context, report []byte) (int, error) {
	n, err := p.outEp.WriteContext(ctx, report)
	return n, mapError(ctx, err)
}

func (p *usbPort) Control(rType, request uint8, val, idx uint16, data []byte) (int, error) {
	n, err := p.dev.Control(rType, request, val, idx, data)
	return n, mapError(context.Background(), err)
}

// WriteBulk switches iface to alt, writes data and switches back to the
// default alternate setting.
func (p *usbPort) WriteBulk(ctx context.Context, iface, alt, endpoint int, data []byte) (int, error) {
	intf, err := p.cfg.Interface(iface, alt)
	if err != nil {
		return 0, fmt.Errorf("%w: interface %d alt %d: %v", protocol.ErrTransport, iface, alt, err)
	}
	n, err := p.writeOn(ctx, intf, endpoint, data)
	intf.Close()

	// restore the default setting, the device expects alt 0 afterwards
	if restore, rerr := p.cfg.Interface(iface, 0); rerr == nil {
		restore.Close()
	} else if err == nil {
		err = fmt.Errorf("%w: restore interface %d: %v", protocol.ErrTransport, iface, rerr)
	}
	return n, err
}

func (p *usbPort) writeOn(ctx context.Context, intf *gousb.Interface, endpoint int, data []byte) (int, error) {
	ep, err := intf.OutEndpoint(endpoint & 0x0F)
	if err != nil {
		return 0, fmt.Errorf("%w: OUT endpoint 0x%02x: %v", protocol.ErrTransport, endpoint, err)
	}
	n, err := ep.WriteContext(ctx, data)
	return n, mapError(ctx, err)
}

func (p *usbPort) Close() error {
	if p.intf != nil {
		p.intf.Close()
	}
	if p.cfg != nil {
		p.cfg.Close()
	}
	if p.dev != nil {
		p.dev.Close()
	}
	if p.ctx != nil {
		return p.ctx.Close()
	}
	return nil
}

// mapError sorts libusb failures into timeouts and transport errors.
func mapError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil ||
		errors.Is(err, gousb.ErrorTimeout) ||
		errors.Is(err, gousb.TransferTimedOut) ||
		errors.Is(err, gousb.TransferCancelled) {
		return fmt.Errorf("%w: %v", protocol.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", protocol.ErrTransport, err)
}
