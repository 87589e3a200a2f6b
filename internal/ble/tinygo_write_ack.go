//go:build darwin || windows

package ble

// tinyGoWriteAcknowledged reports whether tinyGoCharacteristic.Write waits
// for the peripheral's write response on this platform.
const tinyGoWriteAcknowledged = true

func (c *tinyGoCharacteristic) write(data []byte) error {
	_, err := c.char.Write(data)
	return err
}
