//go:build !darwin && !windows

package ble

// tinyGoWriteAcknowledged reports whether tinyGoCharacteristic.Write waits
// for the peripheral's write response on this platform.
//
// tinygo/bluetooth only offers write-without-response on BlueZ and HCI
// hosts. Writes are still serialized by Link, but a failed delivery is not
// reported. Use the goble backend on Linux for acknowledged writes.
const tinyGoWriteAcknowledged = false

func (c *tinyGoCharacteristic) write(data []byte) error {
	_, err := c.char.WriteWithoutResponse(data)
	return err
}
