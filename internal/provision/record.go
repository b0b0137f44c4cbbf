package provision

import "encoding/binary"

// manufacturerRecordLen is the minimum manufacturer-data length carrying a
// usable record: type id, status flags, and an 8-byte MAC.
const manufacturerRecordLen = 10

// Status flag bits in byte 1 of the manufacturer data.
const (
	statusRegistered = 1 << 0
	statusManaged    = 1 << 1
)

// ManufacturerRecord is the parsed Adax manufacturer data of an advertisement.
//
// Format:
//   - Byte 0:    device type id (5 = heater with BLE)
//   - Byte 1:    status flags (bit 0 = registered, bit 1 = managed)
//   - Bytes 2-9: hardware MAC, accumulated big-endian into MACID
type ManufacturerRecord struct {
	TypeID      byte
	StatusFlags byte
	MACID       uint64
}

// ParseManufacturerRecord parses raw manufacturer data. Data shorter than 10
// bytes carries no usable record and reports ok=false; that is an
// insufficient-data condition, not a known-bad device.
func ParseManufacturerRecord(data []byte) (ManufacturerRecord, bool) {
	if len(data) < manufacturerRecordLen {
		return ManufacturerRecord{}, false
	}
	return ManufacturerRecord{
		TypeID:      data[0],
		StatusFlags: data[1],
		MACID:       binary.BigEndian.Uint64(data[2:10]),
	}, true
}

// Registered reports whether the heater is already registered to an account.
func (r ManufacturerRecord) Registered() bool {
	return r.StatusFlags&statusRegistered != 0
}

// Managed reports whether the heater is already managed by a controller.
func (r ManufacturerRecord) Managed() bool {
	return r.StatusFlags&statusManaged != 0
}

// Eligible reports whether the heater can be provisioned. When it cannot, the
// returned reason says why - the distinction matters to the caller because an
// already-claimed heater is a hard stop while an absent one is retryable.
func (r ManufacturerRecord) Eligible() (bool, UnavailableReason) {
	if r.TypeID != DeviceTypeHeaterBLE {
		return false, ReasonWrongDeviceType
	}
	if r.Registered() {
		return false, ReasonAlreadyRegistered
	}
	if r.Managed() {
		return false, ReasonAlreadyManaged
	}
	return true, ""
}
