package printer

import (
	"errors"
	"fmt"
	"runtime"

	"tomgalvin.uk/labelle/internal/device"
)

var (
	ErrDeviceNotFound         = errors.New("Device not found")
	ErrInsufficientPermission = errors.New("Insufficient permission to open device")
	// Retryable once whoever holds the device lets go of it.
	ErrDeviceBusy   = errors.New("Device busy")
	ErrPrintAborted = errors.New("Print aborted")
	ErrTimeout      = errors.New("Device I/O timed out")
)

// PermissionError is returned when a device is attached but can't be opened.
// Hint is the command that grants access.
type PermissionError struct {
	Device device.Profile
	Hint   string
	Err    error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("Couldn't open %s, permission denied. To allow access run:\n%s", e.Device, e.Hint)
}

func (e *PermissionError) Unwrap() []error {
	return nonNil(ErrInsufficientPermission, e.Err)
}

// AbortError carries the reason the printer gave for not finishing a job.
type AbortError struct {
	Reason string
	Err    error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("Print aborted: %s", e.Reason)
}

func (e *AbortError) Unwrap() []error {
	return nonNil(ErrPrintAborted, e.Err)
}

func nonNil(errs ...error) []error {
	out := errs[:0]
	for _, err := range errs {
		if err != nil {
			out = append(out, err)
		}
	}
	return out
}

// IsRetryable reports whether trying the same print again later may succeed
// without anyone touching the hardware.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrDeviceBusy)
}

// AccessHint returns the command that lets the current user open p.
func AccessHint(p device.Profile) string {
	switch runtime.GOOS {
	case "windows":
		return "Set the device driver to WinUSB, for example with Zadig <https://zadig.akeo.ie/>."
	case "darwin":
		return "Check that no other application has claimed the device."
	}
	return fmt.Sprintf(
		"echo 'ACTION==\"add\", SUBSYSTEMS==\"usb\", ATTRS{idVendor}==\"%04x\", ATTRS{idProduct}==\"%04x\", MODE=\"0666\"' "+
			"| sudo tee /etc/udev/rules.d/91-labelle-%04x.rules "+
			"&& sudo udevadm control --reload-rules && sudo udevadm trigger",
		p.VendorID, p.ProductID, p.ProductID,
	)
}
