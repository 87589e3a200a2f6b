package ble

import (
	"runtime"
	"testing"
)

func TestTinyGoWriteModeMatchesPlatform(t *testing.T) {
	want := runtime.GOOS == "darwin" || runtime.GOOS == "windows"
	if tinyGoWriteAcknowledged != want {
		t.Errorf("tinyGoWriteAcknowledged = %v on %s, want %v", tinyGoWriteAcknowledged, runtime.GOOS, want)
	}
}
