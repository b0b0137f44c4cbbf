// Package testutils provides scripted fakes and fluent builders for testing
// the provisioning core without a live radio.
package testutils

import (
	"github.com/adaxtools/adaxctl/internal/transport"
)

// fakeAdvertisement is a plain-value transport.Advertisement.
type fakeAdvertisement struct {
	addr        string
	name        string
	services    []string
	manufData   []byte
	rssi        int
	connectable bool
}

func (a *fakeAdvertisement) Addr() string             { return a.addr }
func (a *fakeAdvertisement) LocalName() string        { return a.name }
func (a *fakeAdvertisement) Services() []string       { return a.services }
func (a *fakeAdvertisement) ManufacturerData() []byte { return a.manufData }
func (a *fakeAdvertisement) RSSI() int                { return a.rssi }
func (a *fakeAdvertisement) Connectable() bool        { return a.connectable }

// AdvertisementBuilder builds fake advertisements for tests with a fluent API.
//
//	adv := NewAdvertisementBuilder().
//	    WithAddress("AA:BB:CC:DD:EE:FF").
//	    WithServices(provision.ServiceUUID).
//	    WithManufacturerData(HeaterManufacturerData(5, 0, mac)).
//	    Build()
type AdvertisementBuilder struct {
	adv fakeAdvertisement
}

// NewAdvertisementBuilder creates a builder with connectable=true and a
// plausible RSSI.
func NewAdvertisementBuilder() *AdvertisementBuilder {
	return &AdvertisementBuilder{
		adv: fakeAdvertisement{
			rssi:        -50,
			connectable: true,
		},
	}
}

// WithAddress sets the device address.
func (b *AdvertisementBuilder) WithAddress(addr string) *AdvertisementBuilder {
	b.adv.addr = addr
	return b
}

// WithName sets the local name.
func (b *AdvertisementBuilder) WithName(name string) *AdvertisementBuilder {
	b.adv.name = name
	return b
}

// WithServices adds advertised service UUIDs.
func (b *AdvertisementBuilder) WithServices(uuids ...string) *AdvertisementBuilder {
	b.adv.services = append(b.adv.services, uuids...)
	return b
}

// WithManufacturerData sets the manufacturer-specific data.
func (b *AdvertisementBuilder) WithManufacturerData(data []byte) *AdvertisementBuilder {
	b.adv.manufData = data
	return b
}

// WithRSSI sets the signal strength.
func (b *AdvertisementBuilder) WithRSSI(rssi int) *AdvertisementBuilder {
	b.adv.rssi = rssi
	return b
}

// WithConnectable sets whether the device accepts connections.
func (b *AdvertisementBuilder) WithConnectable(c bool) *AdvertisementBuilder {
	b.adv.connectable = c
	return b
}

// Build returns the advertisement.
func (b *AdvertisementBuilder) Build() transport.Advertisement {
	adv := b.adv
	return &adv
}

// HeaterManufacturerData assembles a 10-byte Adax manufacturer record from a
// type id, status flags, and 8 MAC bytes.
func HeaterManufacturerData(typeID, statusFlags byte, mac [8]byte) []byte {
	data := []byte{typeID, statusFlags}
	return append(data, mac[:]...)
}
