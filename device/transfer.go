package device

import "errors"

// ErrUnknownDevice indicates a transfer was requested for a buffer whose
// device type has not been established.
var ErrUnknownDevice = errors.New("device: unknown device type in transfer")

// TransferKind is the directionality of a memory copy.
type TransferKind uint8

const (
	HostToHost TransferKind = iota
	HostToDevice
	DeviceToHost
	DeviceToDevice
)

// String returns the transfer kind name.
func (k TransferKind) String() string {
	switch k {
	case HostToHost:
		return "host-to-host"
	case HostToDevice:
		return "host-to-device"
	case DeviceToHost:
		return "device-to-host"
	case DeviceToDevice:
		return "device-to-device"
	default:
		return "invalid"
	}
}

// TransferKindFor resolves a (source, destination) device pair to the single
// transfer kind a copy between them must use. Either side being Unknown is a
// precondition violation and returns ErrUnknownDevice before any device-level
// call can be issued.
func TransferKindFor(src, dst Type) (TransferKind, error) {
	if src == Unknown || dst == Unknown {
		return 0, ErrUnknownDevice
	}
	switch {
	case src.IsHost() && dst.IsHost():
		return HostToHost, nil
	case src.IsHost():
		return HostToDevice, nil
	case dst.IsHost():
		return DeviceToHost, nil
	default:
		return DeviceToDevice, nil
	}
}
