package session

import "fmt"

// invalidSlotError signals a slot index outside the table.
type invalidSlotError struct{ slot int }

func (e invalidSlotError) Error() string {
	return fmt.Sprintf("slot %d outside [0, %d)", e.slot, Slots)
}

// ErrInvalidSlot constructs an invalidSlotError.
func ErrInvalidSlot(slot int) error { return invalidSlotError{slot: slot} }

// IsInvalidSlot reports whether err indicates a bad slot index (return 404).
func IsInvalidSlot(err error) bool {
	_, ok := err.(invalidSlotError)
	return ok
}

// slotOccupiedError signals a load against a slot already holding a session.
type slotOccupiedError struct{ slot int }

func (e slotOccupiedError) Error() string { return fmt.Sprintf("slot %d already occupied", e.slot) }

// ErrSlotOccupied constructs a slotOccupiedError.
func ErrSlotOccupied(slot int) error { return slotOccupiedError{slot: slot} }

// IsSlotOccupied reports whether err indicates an occupied slot (return 409).
func IsSlotOccupied(err error) bool {
	_, ok := err.(slotOccupiedError)
	return ok
}

// slotEmptyError signals an operation against a slot with no loaded session.
type slotEmptyError struct{ slot int }

func (e slotEmptyError) Error() string { return fmt.Sprintf("slot %d holds no session", e.slot) }

// ErrSlotEmpty constructs a slotEmptyError.
func ErrSlotEmpty(slot int) error { return slotEmptyError{slot: slot} }

// IsSlotEmpty reports whether err indicates an empty slot (return 404).
func IsSlotEmpty(err error) bool {
	_, ok := err.(slotEmptyError)
	return ok
}

// networkNotFoundError signals a network id absent from the registry.
type networkNotFoundError struct{ id string }

func (e networkNotFoundError) Error() string { return "network not found: " + e.id }

// ErrNetworkNotFound constructs a networkNotFoundError.
func ErrNetworkNotFound(id string) error { return networkNotFoundError{id: id} }

// IsNetworkNotFound reports whether err indicates a missing network id.
func IsNetworkNotFound(err error) bool {
	_, ok := err.(networkNotFoundError)
	return ok
}

// invalidDeviceError signals a device ordinal outside the visible devices.
type invalidDeviceError struct{ device int }

func (e invalidDeviceError) Error() string { return fmt.Sprintf("invalid device ordinal %d", e.device) }

// ErrInvalidDevice constructs an invalidDeviceError.
func ErrInvalidDevice(device int) error { return invalidDeviceError{device: device} }

// IsInvalidDevice reports whether err indicates a bad device ordinal.
func IsInvalidDevice(err error) bool {
	_, ok := err.(invalidDeviceError)
	return ok
}

// badNetworkError wraps a weight file that could not be decoded or compiled
// so the HTTP layer can return 422 instead of 500.
type badNetworkError struct {
	id  string
	err error
}

func (e badNetworkError) Error() string { return "network " + e.id + ": " + e.err.Error() }
func (e badNetworkError) Unwrap() error { return e.err }

// ErrBadNetwork constructs a badNetworkError.
func ErrBadNetwork(id string, err error) error { return badNetworkError{id: id, err: err} }

// IsBadNetwork reports whether err indicates an unusable weight file.
func IsBadNetwork(err error) bool {
	_, ok := err.(badNetworkError)
	return ok
}
