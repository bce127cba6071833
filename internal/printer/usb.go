package printer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/gousb"

	"tomgalvin.uk/labelle/internal/device"
)

const DefaultIOTimeout = 5 * time.Second

// USBOpener opens USB printers through libusb.
type USBOpener struct {
	// Bound on every read and write.
	Timeout time.Duration
}

type USBPort struct {
	ctx     *gousb.Context
	dev     *gousb.Device
	cfg     *gousb.Config
	intf    *gousb.Interface
	out     *gousb.OutEndpoint
	in      *gousb.InEndpoint
	timeout time.Duration
}

// usbInterface is the interface and endpoints a label can be sent through.
type usbInterface struct {
	config, number, alt int
	out, in             int
}

// findInterface prefers a printer class interface and falls back to HID,
// which some LabelManagers expose instead.
func findInterface(desc *gousb.DeviceDesc) (usbInterface, bool) {
	for _, class := range []gousb.Class{gousb.ClassPrinter, gousb.ClassHID} {
		for _, cfg := range desc.Configs {
			for _, intf := range cfg.Interfaces {
				for _, alt := range intf.AltSettings {
					if alt.Class != class {
						continue
					}
					found := usbInterface{config: cfg.Number, number: alt.Number, alt: alt.Alternate, out: -1, in: -1}
					for _, ep := range alt.Endpoints {
						if ep.Direction == gousb.EndpointDirectionIn {
							found.in = ep.Number
						} else {
							found.out = ep.Number
						}
					}
					if found.out >= 0 && found.in >= 0 {
						return found, true
					}
				}
			}
		}
	}
	return usbInterface{}, false
}

// usbError maps libusb failures onto the errors callers act on.
func usbError(p device.Profile, err error) error {
	switch {
	case errors.Is(err, gousb.ErrorAccess):
		return &PermissionError{Device: p, Hint: AccessHint(p), Err: err}
	case errors.Is(err, gousb.ErrorBusy):
		return fmt.Errorf("%w: %s is claimed by another program:\n%w", ErrDeviceBusy, p, err)
	case errors.Is(err, gousb.ErrorNoDevice), errors.Is(err, gousb.ErrorNotFound):
		return fmt.Errorf("%w: %s:\n%w", ErrDeviceNotFound, p, err)
	case errors.Is(err, gousb.ErrorTimeout), errors.Is(err, gousb.TransferTimedOut), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w:\n%w", ErrTimeout, err)
	}
	return err
}

func (o *USBOpener) Open(ctx context.Context, p device.Profile, at Location) (Port, error) {
	uctx := gousb.NewContext()
	port, err := o.open(uctx, p, at)
	if err != nil {
		uctx.Close()
		return nil, err
	}
	return port, nil
}

// openAt opens the device of model p on the given bus and address.
func openAt(uctx *gousb.Context, p device.Profile, at Location) (*gousb.Device, error) {
	devs, err := uctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Bus == at.Bus && desc.Address == at.Address &&
			p.MatchesUSB(uint16(desc.Vendor), uint16(desc.Product))
	})
	if len(devs) == 0 {
		if err != nil {
			return nil, usbError(p, err)
		}
		return nil, fmt.Errorf("%w: no %s at %s", ErrDeviceNotFound, p, at)
	}
	for _, d := range devs[1:] {
		d.Close()
	}
	return devs[0], nil
}

func (o *USBOpener) open(uctx *gousb.Context, p device.Profile, at Location) (*USBPort, error) {
	var dev *gousb.Device
	if !at.IsZero() {
		d, err := openAt(uctx, p, at)
		if err != nil {
			return nil, err
		}
		dev = d
	}
	for _, pid := range []uint16{p.ModeSwitchProductID, p.ProductID} {
		if dev != nil || pid == 0 {
			continue
		}
		d, err := uctx.OpenDeviceWithVIDPID(gousb.ID(p.VendorID), gousb.ID(pid))
		if err != nil {
			return nil, usbError(p, err)
		}
		dev = d
	}
	if dev == nil {
		return nil, fmt.Errorf("%w: no %s attached", ErrDeviceNotFound, p)
	}

	found, ok := findInterface(dev.Desc)
	if !ok {
		dev.Close()
		return nil, fmt.Errorf("%w: %s has no printer interface, it may still be in mass storage mode", ErrDeviceNotFound, p)
	}
	if err := dev.SetAutoDetach(true); err != nil {
		slog.Warn("Couldn't enable kernel driver auto detach", "device", p.Model, "error", err)
	}

	port := &USBPort{ctx: uctx, dev: dev, timeout: o.Timeout}
	if port.timeout <= 0 {
		port.timeout = DefaultIOTimeout
	}

	var err error
	if port.cfg, err = dev.Config(found.config); err != nil {
		port.Close()
		return nil, usbError(p, err)
	}
	if port.intf, err = port.cfg.Interface(found.number, found.alt); err != nil {
		port.Close()
		return nil, usbError(p, err)
	}
	if port.out, err = port.intf.OutEndpoint(found.out); err != nil {
		port.Close()
		return nil, usbError(p, err)
	}
	if port.in, err = port.intf.InEndpoint(found.in); err != nil {
		port.Close()
		return nil, usbError(p, err)
	}

	slog.Debug("Opened USB device", "device", p.Model, "interface", found.number, "out", found.out, "in", found.in)
	return port, nil
}

func (u *USBPort) Write(ctx context.Context, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	for len(data) > 0 {
		n, err := u.out.WriteContext(ctx, data)
		if err != nil {
			return usbIOError(err)
		}
		data = data[n:]
	}
	return nil
}

func (u *USBPort) Read(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	buf := make([]byte, max(u.in.Desc.MaxPacketSize, 512))
	n, err := u.in.ReadContext(ctx, buf)
	if err != nil {
		return nil, usbIOError(err)
	}
	return buf[:n], nil
}

func usbIOError(err error) error {
	if errors.Is(err, gousb.ErrorTimeout) || errors.Is(err, gousb.TransferTimedOut) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w:\n%w", ErrTimeout, err)
	}
	return err
}

func (u *USBPort) Close() error {
	var errs []error
	if u.intf != nil {
		u.intf.Close()
	}
	if u.cfg != nil {
		errs = append(errs, u.cfg.Close())
	}
	if u.dev != nil {
		errs = append(errs, u.dev.Close())
	}
	if u.ctx != nil {
		errs = append(errs, u.ctx.Close())
	}
	return errors.Join(errs...)
}

// Attached is a supported printer found on the USB bus.
type Attached struct {
	Profile   device.Profile
	ProductID uint16
	Bus       int
	Address   int
}

func (a Attached) Location() Location {
	return Location{Bus: a.Bus, Address: a.Address}
}

func (a Attached) String() string {
	return fmt.Sprintf("%s on bus %d address %d", a.Profile, a.Bus, a.Address)
}

// ListUSB returns the attached USB devices the registry knows about.
func ListUSB(reg *device.Registry) ([]Attached, error) {
	uctx := gousb.NewContext()
	defer uctx.Close()

	var found []Attached
	devs, err := uctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if p, ok := reg.ByUSB(uint16(desc.Vendor), uint16(desc.Product)); ok {
			found = append(found, Attached{Profile: p, ProductID: uint16(desc.Product), Bus: desc.Bus, Address: desc.Address})
		}
		return false
	})
	for _, d := range devs {
		d.Close()
	}
	if err != nil && len(found) == 0 {
		return nil, fmt.Errorf("Couldn't enumerate USB devices:\n%w", err)
	}
	return found, nil
}
