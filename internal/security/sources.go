package security

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

var errNoValue = errors.New("no value")

// commandRunner executes an external program and returns its stdout
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// DefaultSources returns the identifier sources for the running platform in
// fingerprint order: processor id, board serial, primary MAC, host name.
func DefaultSources() []Source {
	return []Source{
		ProcessorSource(runtime.GOOS, runCommand, os.ReadFile),
		BoardSerialSource(runtime.GOOS, runCommand, os.ReadFile),
		SourceFunc{SourceName: "mac_address", Fn: func(context.Context) (string, error) { return PrimaryMACAddress() }},
		SourceFunc{SourceName: "hostname", Fn: func(context.Context) (string, error) { return os.Hostname() }},
	}
}

// ProcessorSource reads the processor id (Windows), the cpuinfo serial
// (Linux) or the hardware serial number (macOS).
func ProcessorSource(goos string, run commandRunner, readFile func(string) ([]byte, error)) Source {
	return SourceFunc{SourceName: "processor_id", Fn: func(ctx context.Context) (string, error) {
		switch goos {
		case "windows":
			out, err := run(ctx, "wmic", "cpu", "get", "ProcessorId")
			if err != nil {
				return "", err
			}
			return wmicValue(out)
		case "linux":
			data, err := readFile("/proc/cpuinfo")
			if err != nil {
				return "", err
			}
			return fieldValue(data, "Serial")
		case "darwin":
			out, err := run(ctx, "system_profiler", "SPHardwareDataType")
			if err != nil {
				return "", err
			}
			return fieldValue(out, "Serial Number")
		default:
			return "", fmt.Errorf("processor id unsupported on %s", goos)
		}
	}}
}

// BoardSerialSource reads the baseboard serial number where the platform
// exposes it without elevated rights.
func BoardSerialSource(goos string, run commandRunner, readFile func(string) ([]byte, error)) Source {
	return SourceFunc{SourceName: "board_serial", Fn: func(ctx context.Context) (string, error) {
		switch goos {
		case "windows":
			out, err := run(ctx, "wmic", "baseboard", "get", "SerialNumber")
			if err != nil {
				return "", err
			}
			return wmicValue(out)
		case "linux":
			data, err := readFile("/sys/class/dmi/id/board_serial")
			if err != nil {
				return "", err
			}
			return nonEmpty(strings.TrimSpace(string(data)))
		default:
			return "", fmt.Errorf("board serial unsupported on %s", goos)
		}
	}}
}

// PrimaryMACAddress returns the hardware address of the first interface that
// is up and not loopback, falling back to any interface with an address.
func PrimaryMACAddress() (string, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("failed to get network interfaces: %w", err)
	}
	return pickMAC(interfaces)
}

func pickMAC(interfaces []net.Interface) (string, error) {
	valid := func(iface net.Interface) (string, bool) {
		if len(iface.HardwareAddr) == 0 {
			return "", false
		}
		mac := iface.HardwareAddr.String()
		return mac, mac != "" && mac != "00:00:00:00:00:00"
	}

	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		if mac, ok := valid(iface); ok {
			return mac, nil
		}
	}
	for _, iface := range interfaces {
		if mac, ok := valid(iface); ok {
			return mac, nil
		}
	}
	return "", fmt.Errorf("no valid MAC address found")
}

// wmicValue returns the first data row of `wmic ... get X` output
func wmicValue(out []byte) (string, error) {
	lines := strings.Split(strings.ReplaceAll(string(out), "\r", ""), "\n")
	for _, line := range lines[1:] {
		if v := strings.TrimSpace(line); v != "" {
			return v, nil
		}
	}
	return "", errNoValue
}

// fieldValue returns the value of the first "key : value" line whose key
// contains name.
func fieldValue(data []byte, name string) (string, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if ok && strings.Contains(key, name) {
			return nonEmpty(strings.TrimSpace(value))
		}
	}
	return "", errNoValue
}

func nonEmpty(v string) (string, error) {
	if v == "" {
		return "", errNoValue
	}
	return v, nil
}
