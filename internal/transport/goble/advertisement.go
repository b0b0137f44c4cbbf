package goble

import (
	"github.com/go-ble/ble"

	"github.com/adaxtools/adaxctl/internal/transport"
)

// bleAdvertisement snapshots a ble.Advertisement into a transport.Advertisement.
// Values are copied at construction because the underlying advertisement data
// is owned by the scan callback and may be reused by the BLE stack.
type bleAdvertisement struct {
	addr             string
	localName        string
	services         []string
	manufacturerData []byte
	rssi             int
	connectable      bool
}

func newAdvertisement(a ble.Advertisement) transport.Advertisement {
	services := make([]string, 0, len(a.Services()))
	for _, svc := range a.Services() {
		services = append(services, svc.String())
	}
	md := a.ManufacturerData()
	mdCopy := make([]byte, len(md))
	copy(mdCopy, md)

	return &bleAdvertisement{
		addr:             a.Addr().String(),
		localName:        a.LocalName(),
		services:         services,
		manufacturerData: mdCopy,
		rssi:             a.RSSI(),
		connectable:      a.Connectable(),
	}
}

func (a *bleAdvertisement) Addr() string             { return a.addr }
func (a *bleAdvertisement) LocalName() string        { return a.localName }
func (a *bleAdvertisement) Services() []string       { return a.services }
func (a *bleAdvertisement) ManufacturerData() []byte { return a.manufacturerData }
func (a *bleAdvertisement) RSSI() int                { return a.rssi }
func (a *bleAdvertisement) Connectable() bool        { return a.connectable }
