//go:build linux

package i2c

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/ZaparooProject/go-vdm/detection"
	"golang.org/x/sys/unix"
)

const (
	// ioctl requests from linux/i2c-dev.h
	i2cSlave = 0x0703
	i2cFuncs = 0x0705

	// i2cFuncI2C indicates plain I2C transfers
	i2cFuncI2C = 0x00000001
)

var errShortTransfer = errors.New("short i2c transfer")

// i2cBusInfo contains information about an I2C bus
type i2cBusInfo struct {
	Path   string // Device path, e.g., "/dev/i2c-1"
	Number int    // Bus number
}

// busFile is an open /dev/i2c-N with a selected target address
type busFile struct {
	fd int
}

func openBus(path string) (*busFile, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &busFile{fd: fd}, nil
}

func (b *busFile) close() {
	_ = unix.Close(b.fd)
}

func (b *busFile) setAddress(addr uint8) error {
	return unix.IoctlSetInt(b.fd, i2cSlave, int(addr))
}

// ReadReg selects reg and reads len(p) bytes
func (b *busFile) ReadReg(reg byte, p []byte) error {
	if err := b.write([]byte{reg}); err != nil {
		return err
	}
	n, err := unix.Read(b.fd, p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return errShortTransfer
	}
	return nil
}

// WriteReg writes p to reg in one transfer
func (b *busFile) WriteReg(reg byte, p []byte) error {
	return b.write(append([]byte{reg}, p...))
}

func (b *busFile) write(p []byte) error {
	n, err := unix.Write(b.fd, p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return errShortTransfer
	}
	return nil
}

// detectLinux searches /dev/i2c-* for MCUs
func detectLinux(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	buses, err := findI2CBuses()
	if err != nil {
		return nil, err
	}
	if len(buses) == 0 {
		return nil, detection.ErrNoDevicesFound
	}

	var devices []detection.DeviceInfo
	for _, bus := range buses {
		if err := ctx.Err(); err != nil {
			if len(devices) > 0 {
				return devices, nil
			}
			return nil, detection.ErrDetectionTimeout
		}
		devices = append(devices, detectBusDevices(ctx, bus, opts)...)
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

// detectBusDevices checks one bus. Passive mode reports the default
// address without bus traffic; Safe probes only the default address;
// Full scans every address.
func detectBusDevices(ctx context.Context, bus i2cBusInfo, opts *detection.Options) []detection.DeviceInfo {
	if opts.Mode == detection.Passive {
		path := devicePath(bus.Path, DefaultAddress)
		if detection.IsPathIgnored(path, opts.IgnorePaths) {
			return nil
		}
		return []detection.DeviceInfo{newDeviceInfo(bus, DefaultAddress, detection.Low)}
	}

	f, err := openBus(bus.Path)
	if err != nil {
		return nil
	}
	defer f.close()

	addrs := []uint8{DefaultAddress}
	if opts.Mode == detection.Full {
		addrs = scanI2CBus(f)
	}

	var devices []detection.DeviceInfo
	for _, addr := range addrs {
		if ctx.Err() != nil {
			break
		}
		if detection.IsPathIgnored(devicePath(bus.Path, addr), opts.IgnorePaths) {
			continue
		}
		if err := f.setAddress(addr); err != nil {
			continue
		}
		if _, err := pending(f); err != nil {
			continue // nothing acknowledged the address
		}

		ok, err := ping(ctx, f, opts.ProbeTimeout)
		switch {
		case ok:
			devices = append(devices, newDeviceInfo(bus, addr, detection.High))
		case err == nil && addr == DefaultAddress:
			devices = append(devices, newDeviceInfo(bus, addr, detection.Medium))
		}
	}
	return devices
}

func newDeviceInfo(bus i2cBusInfo, addr uint8, conf detection.Confidence) detection.DeviceInfo {
	return detection.DeviceInfo{
		Transport:  "i2c",
		Path:       devicePath(bus.Path, addr),
		Name:       fmt.Sprintf("I2C device at %s address 0x%02X", bus.Path, addr),
		Confidence: conf,
		Metadata: map[string]string{
			"bus":     bus.Path,
			"bus_num": fmt.Sprintf("%d", bus.Number),
			"address": fmt.Sprintf("0x%02X", addr),
		},
	}
}

// findI2CBuses discovers I2C adapters that support plain transfers
func findI2CBuses() ([]i2cBusInfo, error) {
	matches, err := filepath.Glob("/dev/i2c-*")
	if err != nil {
		return nil, fmt.Errorf("failed to scan for I2C devices: %w", err)
	}

	buses := make([]i2cBusInfo, 0, len(matches))
	for _, path := range matches {
		num, ok := parseBusNumber(path)
		if !ok {
			continue
		}

		fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
		if err != nil {
			continue
		}
		funcs, err := unix.IoctlGetUint32(fd, i2cFuncs)
		_ = unix.Close(fd)
		if err != nil || funcs&i2cFuncI2C == 0 {
			continue
		}

		buses = append(buses, i2cBusInfo{Path: path, Number: num})
	}

	sort.Slice(buses, func(i, j int) bool { return buses[i].Number < buses[j].Number })
	return buses, nil
}

// parseBusNumber extracts N from /dev/i2c-N
func parseBusNumber(path string) (int, bool) {
	var num int
	if _, err := fmt.Sscanf(filepath.Base(path), "i2c-%d", &num); err != nil {
		return 0, false
	}
	return num, true
}

// scanI2CBus returns addresses that acknowledge a one byte read
func scanI2CBus(f *busFile) []uint8 {
	var found []uint8
	buf := make([]byte, 1)
	for addr := uint8(firstAddr); addr <= lastAddr; addr++ {
		if err := f.setAddress(addr); err != nil {
			continue
		}
		if _, err := unix.Read(f.fd, buf); err == nil {
			found = append(found, addr)
		}
	}
	return found
}
