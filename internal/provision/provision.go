// Package provision implements the BLE provisioning handshake for Adax
// WiFi/BLE heaters: discovery of an unregistered heater, transfer of WiFi
// credentials and an access token over the command characteristic, and the
// notification-driven wait for the heater's assigned IP address.
package provision

// Identifiers fixed by the heater firmware.
const (
	// ServiceUUID is the Adax BLE service advertised by heaters in pairing mode.
	ServiceUUID = "3885cc10-7c18-4ad4-a48d-bf11abf7cb92"

	// CommandCharacteristicUUID carries join commands (writes) and command
	// status notifications.
	CommandCharacteristicUUID = "0000cc11-0000-1000-8000-00805f9b34fb"

	// DeviceTypeHeaterBLE is the manufacturer-data type id of the supported
	// heater model.
	DeviceTypeHeaterBLE = 5

	// MaxChunkPayload is the number of command payload bytes per write; each
	// on-wire write additionally carries a chunk-index byte and a last-flag
	// byte.
	MaxChunkPayload = 17
)

// Notification status codes pushed on the command characteristic.
const (
	StatusOK          = 0
	StatusInvalidWiFi = 1
)
