package printer

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tinygo.org/x/bluetooth"

	"tomgalvin.uk/labelle/internal/device"
)

var (
	bleStartBytes = []byte{0xFF, 0xF0, 0x12, 0x34}
	bleEndBytes   = []byte{0x12, 0x34}

	bleWriteUUID = mustParseUUID("be3dd651-2b3d-42f1-99c1-f0f749dd0678")
	bleReadUUID  = mustParseUUID("be3dd652-2b3d-42f1-99c1-f0f749dd0678")
)

const (
	defaultBLEMTU      = 500
	defaultScanTimeout = 10 * time.Second
)

func mustParseUUID(s string) bluetooth.UUID {
	u, err := bluetooth.ParseUUID(s)
	if err != nil {
		panic(err)
	}
	return u
}

// bleHeader announces a message of n bytes. The last byte is a checksum of
// the ones before it.
func bleHeader(n int) []byte {
	h := binary.LittleEndian.AppendUint32(append([]byte{}, bleStartBytes...), uint32(n))
	var sum byte
	for _, b := range h {
		sum += b
	}
	return append(h, sum)
}

// bleFrames splits data into the writes for one message: the header, then
// chunks of at most size bytes with the end marker after the last.
func bleFrames(data []byte, size int) [][]byte {
	frames := [][]byte{bleHeader(len(data))}
	for start := 0; start < len(data); start += size {
		end := min(start+size, len(data))
		frames = append(frames, append([]byte{}, data[start:end]...))
	}
	if len(frames) == 1 {
		frames = append(frames, []byte{})
	}
	last := len(frames) - 1
	frames[last] = append(frames[last], bleEndBytes...)
	return frames
}

// BluetoothOpener finds BLE printers by their advertised name, or by
// address when given one.
type BluetoothOpener struct {
	Adapter     *bluetooth.Adapter
	ScanTimeout time.Duration
	// Bound on connecting and on every read and write.
	Timeout time.Duration
}

// gattCharacteristic is the part of a bluetooth.DeviceCharacteristic a port
// talks through.
type gattCharacteristic interface {
	WriteWithoutResponse(p []byte) (int, error)
	Read(data []byte) (int, error)
}

type BluetoothPort struct {
	writer     gattCharacteristic
	reader     gattCharacteristic
	disconnect func() error
	chunkSize  int
	timeout    time.Duration
}

func (o *BluetoothOpener) timeout() time.Duration {
	if o.Timeout <= 0 {
		return DefaultIOTimeout
	}
	return o.Timeout
}

func (o *BluetoothOpener) Open(ctx context.Context, p device.Profile, at Location) (Port, error) {
	adapter := o.Adapter
	if adapter == nil {
		adapter = bluetooth.DefaultAdapter
	}
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("Couldn't enable Bluetooth:\n%w", err)
	}

	address, err := o.scan(ctx, adapter, p, at)
	if err != nil {
		return nil, err
	}
	return withTimeout(ctx, o.timeout(), func() (*BluetoothPort, error) {
		return connect(adapter, address, p, o.timeout())
	})
}

// scanMatch reports whether an advertisement is from the printer wanted.
func scanMatch(p device.Profile, at Location, name, address string) bool {
	if at.BLEAddress != "" {
		return strings.EqualFold(address, at.BLEAddress)
	}
	return p.BLENamePrefix != "" && strings.HasPrefix(name, p.BLENamePrefix)
}

func (o *BluetoothOpener) scan(ctx context.Context, adapter *bluetooth.Adapter, p device.Profile, at Location) (bluetooth.Address, error) {
	timeout := o.ScanTimeout
	if timeout <= 0 {
		timeout = defaultScanTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	devices := make(chan bluetooth.ScanResult, 1)
	go func() {
		err := adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			if scanMatch(p, at, result.LocalName(), result.Address.String()) {
				slog.Info("Found device", "deviceName", result.LocalName(), "address", result.Address.String())
				select {
				case devices <- result:
				default:
				}
				adapter.StopScan()
			}
		})
		if err != nil {
			slog.Error("Failed to scan for devices", "error", err)
		}
	}()

	select {
	case dev := <-devices:
		return dev.Address, nil
	case <-ctx.Done():
		adapter.StopScan()
		if !at.IsZero() {
			return bluetooth.Address{}, fmt.Errorf("%w: no %s at %s in range", ErrDeviceNotFound, p.Model, at)
		}
		return bluetooth.Address{}, fmt.Errorf("%w: no device named %s* in range", ErrDeviceNotFound, p.BLENamePrefix)
	}
}

func connect(adapter *bluetooth.Adapter, address bluetooth.Address, p device.Profile, timeout time.Duration) (*BluetoothPort, error) {
	slog.Debug("Connecting to device...", "address", address.String())
	dev, err := adapter.Connect(address, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, fmt.Errorf("Couldn't connect to %s:\n%w", p.Model, err)
	}

	slog.Debug("Discovering services...")
	services, err := dev.DiscoverServices(nil)
	if err != nil {
		dev.Disconnect()
		return nil, fmt.Errorf("Couldn't discover services:\n%w", err)
	}

	var writer, reader *bluetooth.DeviceCharacteristic
	for _, service := range services {
		chars, err := service.DiscoverCharacteristics(nil)
		if err != nil {
			slog.Debug("Couldn't discover characteristics", "service", service.UUID().String(), "error", err)
			continue
		}
		for i := range chars {
			switch chars[i].UUID() {
			case bleWriteUUID:
				writer = &chars[i]
			case bleReadUUID:
				reader = &chars[i]
			}
		}
	}
	if writer == nil || reader == nil {
		dev.Disconnect()
		return nil, fmt.Errorf("%w: %s doesn't expose the label printing service", ErrDeviceNotFound, p.Model)
	}

	port := &BluetoothPort{
		writer:     *writer,
		reader:     *reader,
		disconnect: dev.Disconnect,
		chunkSize:  defaultBLEMTU - 2,
		timeout:    timeout,
	}
	if mtu, err := writer.GetMTU(); err == nil && mtu > 2 {
		port.chunkSize = int(mtu) - 2
	}
	slog.Debug("Connected", "device", p.Model, "chunkSize", port.chunkSize)
	return port, nil
}

// withTimeout runs op, giving up with ErrTimeout once timeout passes. GATT
// calls can't be interrupted, so a call given up on finishes in the
// background.
func withTimeout[T any](ctx context.Context, timeout time.Duration, op func() (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := op()
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w:\n%w", ErrTimeout, ctx.Err())
		}
		return zero, ctx.Err()
	}
}

func (p *BluetoothPort) Write(ctx context.Context, data []byte) error {
	for _, frame := range bleFrames(data, p.chunkSize) {
		_, err := withTimeout(ctx, p.timeout, func() (int, error) {
			return p.writer.WriteWithoutResponse(frame)
		})
		if err != nil {
			return fmt.Errorf("Couldn't write data:\n%w", err)
		}
	}
	slog.Debug("Wrote data to device", "size", len(data))
	return nil
}

func (p *BluetoothPort) Read(ctx context.Context) ([]byte, error) {
	return withTimeout(ctx, p.timeout, func() ([]byte, error) {
		buf := make([]byte, 512)
		n, err := p.reader.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("Couldn't read response:\n%w", err)
		}
		return buf[:n], nil
	})
}

func (p *BluetoothPort) Close() error {
	return p.disconnect()
}
