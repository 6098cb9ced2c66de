package link

import (
	"fmt"
	"sort"
	"strings"

	"go.bug.st/serial/enumerator"
)

// DefaultPortFilter selects the USB-UART bridge fitted to the MCU boards.
const DefaultPortFilter = "CP210x"

// PortInfo describes one serial port found on the host.
type PortInfo struct {
	Name    string
	Product string
	IsUSB   bool
	VID     string
	PID     string
	Serial  string
}

func (p PortInfo) String() string {
	if p.Product == "" {
		return p.Name
	}
	return fmt.Sprintf("[%s] %s", p.Name, p.Product)
}

// listDetailed is replaced in tests.
var listDetailed = enumerator.GetDetailedPortsList

// ListPorts enumerates serial ports whose product description contains filter
// (case-insensitive). An empty filter returns every port.
func ListPorts(filter string) ([]PortInfo, error) {
	details, err := listDetailed()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return filterPorts(details, filter), nil
}

func filterPorts(details []*enumerator.PortDetails, filter string) []PortInfo {
	needle := strings.ToLower(strings.TrimSpace(filter))
	var ports []PortInfo
	for _, d := range details {
		if d == nil {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(d.Product), needle) {
			continue
		}
		ports = append(ports, PortInfo{
			Name:    d.Name,
			Product: d.Product,
			IsUSB:   d.IsUSB,
			VID:     d.VID,
			PID:     d.PID,
			Serial:  d.SerialNumber,
		})
	}
	sort.Slice(ports, func(i, j int) bool { return ports[i].Name < ports[j].Name })
	return ports
}
