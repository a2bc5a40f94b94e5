// internal/daq/scan.go
package daq

import (
	"log"
	"path/filepath"
)

// ScanDevices lists serial adapters matching /dev/ttyUSB*. It only
// scans; no connection is made.
func ScanDevices() []string {
	devices, err := filepath.Glob("/dev/ttyUSB*")
	if err != nil {
		log.Printf("daq: device scan failed: %v", err)
		return nil
	}
	if len(devices) == 0 {
		log.Printf("daq: no serial adapters found")
		return nil
	}
	for i, dev := range devices {
		log.Printf("daq: (%d) %s", i+1, dev)
	}
	return devices
}
