package ble

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ScanForDevices lists peripherals advertising serviceUUID seen within
// timeout, strongest signal first.
func ScanForDevices(adapter Adapter, serviceUUID string, timeout time.Duration) ([]Device, error) {
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAdapterUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var mu sync.Mutex
	var devices []Device
	err := adapter.Scan(ctx, serviceUUID, func(d Device) {
		mu.Lock()
		devices = append(devices, d)
		mu.Unlock()
	})
	if err != nil {
		return nil, fmt.Errorf("ble: scan: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	sort.SliceStable(devices, func(i, j int) bool { return devices[i].RSSI > devices[j].RSSI })
	return devices, nil
}
