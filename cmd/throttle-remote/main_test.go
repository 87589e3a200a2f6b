package main

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaz8081/throttle-remote/internal/ble"
	"github.com/chaz8081/throttle-remote/internal/config"
)

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "v1.2.3", formatVersion("1.2.3"))
	assert.Equal(t, "dev", formatVersion("dev"))
	assert.Equal(t, "", formatVersion(""))
}

func TestParseSendArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr bool
	}{
		{"plain", []string{"60", "25"}, "60,25", false},
		{"zero current is off", []string{"60", "0"}, "60,-1", false},
		{"off keyword", []string{"60", "off"}, "60,-1", false},
		{"OFF keyword", []string{"60", "OFF"}, "60,-1", false},
		{"explicit sentinel", []string{"60", "-1"}, "60,-1", false},
		{"max bounds", []string{"100", "100"}, "100,100", false},
		{"max too high", []string{"101", "10"}, "", true},
		{"max negative", []string{"-5", "10"}, "", true},
		{"max not a number", []string{"lots", "10"}, "", true},
		{"current too high", []string{"50", "120"}, "", true},
		{"current below sentinel", []string{"50", "-2"}, "", true},
		{"current fractional", []string{"50", "2.5"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := parseSendArgs(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.String())
		})
	}
}

func TestNewAdapter(t *testing.T) {
	a, err := newAdapter("tinygo")
	require.NoError(t, err)
	assert.IsType(t, &ble.TinyGoAdapter{}, a)

	a, err = newAdapter("goble")
	require.NoError(t, err)
	assert.IsType(t, &ble.GoBLEAdapter{}, a)

	_, err = newAdapter("bluez")
	assert.Error(t, err)
}

func TestLinkAndControlOptionsFromConfig(t *testing.T) {
	c := config.Default()
	c.Link.ConnectTimeout = 3 * time.Second
	c.Link.ReconnectMax = 9 * time.Second
	c.Control.Debounce = 70 * time.Millisecond
	c.Control.InitialMax = 40

	lo := linkOptions(c)
	assert.Equal(t, c.Link.ServiceUUID, lo.ServiceUUID)
	assert.Equal(t, c.Link.CharUUID, lo.CharUUID)
	assert.Equal(t, 3*time.Second, lo.ConnectTimeout)
	assert.Equal(t, 9*time.Second, lo.ReconnectMax)
	assert.Equal(t, ble.DefaultLinkOptions().BackoffBase, lo.BackoffBase)

	co := controlOptions(c)
	assert.Equal(t, 70*time.Millisecond, co.Window)
	assert.Equal(t, 40, co.InitialMax)
}

func TestFormatUserError(t *testing.T) {
	err := fmt.Errorf("%w: radio off", ble.ErrAdapterUnavailable)
	assert.Contains(t, FormatUserError(err), "Bluetooth")

	plain := errors.New("boom")
	assert.Equal(t, "boom", FormatUserError(plain))
}

func TestPrintBanner(t *testing.T) {
	c := config.Default()
	c.Hotkey.Enabled = true

	var buf bytes.Buffer
	printBanner(&buf, c)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "=== throttle-remote ==="))
	assert.Contains(t, out, "ws://127.0.0.1:8080/ws")
	assert.Contains(t, out, "ctrl+shift+t (hold mode, 30%)")
}

func TestPrintDevices(t *testing.T) {
	var buf bytes.Buffer
	printDevices(&buf, []ble.Device{
		{Name: "Throttle", Address: "AA:BB", RSSI: -50},
		{Address: "CC:DD", RSSI: -90},
	})

	out := buf.String()
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "Throttle")
	assert.Contains(t, out, "(unnamed)")
	assert.Contains(t, out, "-90 dBm")

	buf.Reset()
	printDevices(&buf, nil)
	assert.Equal(t, "No throttle controllers found.\n", buf.String())
}

func TestLoadConfigFallsBackToDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	c, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), c)
}

func TestConfigInitWritesFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"config", "init"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "Wrote default config to "+config.DefaultConfigPath())

	out.Reset()
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "Config already exists")
}
