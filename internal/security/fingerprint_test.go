package security

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todocx/internal/shared/testutil"
)

// simulatedHost returns sources backed by a mutable map of identifiers
func simulatedHost(values map[string]string) []Source {
	names := []string{"processor_id", "board_serial", "mac_address", "hostname"}
	sources := make([]Source, 0, len(names))
	for _, name := range names {
		name := name
		sources = append(sources, SourceFunc{SourceName: name, Fn: func(context.Context) (string, error) {
			v, ok := values[name]
			if !ok {
				return "", errors.New("unavailable")
			}
			return v, nil
		}})
	}
	return sources
}

func TestFingerprint_Stable(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	host := map[string]string{
		"processor_id": "BFEBFBFF000906EA",
		"board_serial": "PF2ABCDE",
		"mac_address":  "00:1a:2b:3c:4d:5e",
		"hostname":     "DESKTOP-1",
	}
	g := NewFingerprintGenerator(logger, WithSources(simulatedHost(host)...))

	first := g.Fingerprint(context.Background())
	second := g.Fingerprint(context.Background())

	assert.Equal(t, first, second)
	assert.Len(t, first, FingerprintLength)
	assert.Regexp(t, `^[0-9A-F]{16}$`, first)
	assert.Equal(t, Digest("BFEBFBFF000906EA|PF2ABCDE|00:1a:2b:3c:4d:5e|DESKTOP-1"), first)
}

func TestFingerprint_ChangesWithAnyIdentifier(t *testing.T) {
	base := map[string]string{
		"processor_id": "BFEBFBFF000906EA",
		"board_serial": "PF2ABCDE",
		"mac_address":  "00:1a:2b:3c:4d:5e",
		"hostname":     "DESKTOP-1",
	}
	baseline := NewFingerprintGenerator(nil, WithSources(simulatedHost(base)...)).Fingerprint(context.Background())

	for key := range base {
		t.Run(key, func(t *testing.T) {
			changed := make(map[string]string, len(base))
			for k, v := range base {
				changed[k] = v
			}
			changed[key] = base[key] + "-x"

			got := NewFingerprintGenerator(nil, WithSources(simulatedHost(changed)...)).Fingerprint(context.Background())
			assert.NotEqual(t, baseline, got)
		})
	}
}

func TestFingerprint_FailingSourceIsOmitted(t *testing.T) {
	host := map[string]string{
		"mac_address": "00:1a:2b:3c:4d:5e",
		"hostname":    "DESKTOP-1",
	}
	g := NewFingerprintGenerator(nil, WithSources(simulatedHost(host)...))

	assert.Equal(t, Digest("00:1a:2b:3c:4d:5e|DESKTOP-1"), g.Fingerprint(context.Background()))
}

func TestFingerprint_Fallback(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	g := NewFingerprintGenerator(logger,
		WithSources(simulatedHost(map[string]string{"hostname": "  "})...),
		WithFallback(func() string { return "Linux|build-box" }),
	)

	assert.Equal(t, Digest("Linux|build-box"), g.Fingerprint(context.Background()))
	assert.True(t, logs.ContainsMessage("fallback identity"))
}

func TestFingerprint_ConcurrentCallsShareResult(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	slow := SourceFunc{SourceName: "slow", Fn: func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "serial", nil
	}}
	g := NewFingerprintGenerator(nil, WithSources(slow))

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = g.Fingerprint(context.Background())
		}(i)
	}
	close(release)
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, Digest("serial"), r)
	}
	assert.LessOrEqual(t, calls.Load(), int32(len(results)))
}

func TestFingerprint_SourcesReadOnce(t *testing.T) {
	var calls atomic.Int32
	counting := SourceFunc{SourceName: "board_serial", Fn: func(context.Context) (string, error) {
		calls.Add(1)
		return "PF2ABCDE", nil
	}}
	g := NewFingerprintGenerator(nil, WithSources(counting))

	for i := 0; i < 5; i++ {
		assert.Equal(t, Digest("PF2ABCDE"), g.Fingerprint(context.Background()))
	}
	assert.Equal(t, int32(1), calls.Load())

	readings := g.Collect(context.Background())
	require.Len(t, readings, 1)
	assert.Equal(t, int32(2), calls.Load(), "Collect always reads the sources")
}

func TestProcessorSource(t *testing.T) {
	tests := []struct {
		name    string
		goos    string
		out     string
		file    string
		want    string
		wantErr bool
	}{
		{
			name: "windows wmic",
			goos: "windows",
			out:  "ProcessorId      \r\nBFEBFBFF000906EA \r\n\r\n",
			want: "BFEBFBFF000906EA",
		},
		{
			name: "linux cpuinfo serial",
			goos: "linux",
			file: "processor\t: 0\nHardware\t: BCM2835\nSerial\t\t: 100000003a1c2b4d\n",
			want: "100000003a1c2b4d",
		},
		{
			name:    "linux without serial",
			goos:    "linux",
			file:    "processor\t: 0\nmodel name\t: Intel\n",
			wantErr: true,
		},
		{
			name: "darwin hardware serial",
			goos: "darwin",
			out:  "Hardware:\n\n    Hardware Overview:\n      Serial Number (system): C02XK0JHJG5J\n",
			want: "C02XK0JHJG5J",
		},
		{
			name:    "unsupported",
			goos:    "plan9",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := func(context.Context, string, ...string) ([]byte, error) { return []byte(tt.out), nil }
			readFile := func(string) ([]byte, error) { return []byte(tt.file), nil }

			got, err := ProcessorSource(tt.goos, run, readFile).Read(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBoardSerialSource(t *testing.T) {
	run := func(context.Context, string, ...string) ([]byte, error) {
		return []byte("SerialNumber\r\nPF2ABCDE\r\n"), nil
	}
	got, err := BoardSerialSource("windows", run, nil).Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "PF2ABCDE", got)

	denied := func(string) ([]byte, error) { return nil, errors.New("permission denied") }
	_, err = BoardSerialSource("linux", nil, denied).Read(context.Background())
	assert.Error(t, err)
}

func TestPickMAC(t *testing.T) {
	loopback := net.Interface{Name: "lo", Flags: net.FlagUp | net.FlagLoopback}
	down := net.Interface{Name: "eth1", HardwareAddr: net.HardwareAddr{0, 0x1a, 0x2b, 0, 0, 1}}
	up := net.Interface{Name: "eth0", Flags: net.FlagUp, HardwareAddr: net.HardwareAddr{0, 0x1a, 0x2b, 0, 0, 2}}

	mac, err := pickMAC([]net.Interface{loopback, down, up})
	require.NoError(t, err)
	assert.Equal(t, "00:1a:2b:00:00:02", mac)

	mac, err = pickMAC([]net.Interface{loopback, down})
	require.NoError(t, err)
	assert.Equal(t, "00:1a:2b:00:00:01", mac, "falls back to an interface that is down")

	_, err = pickMAC([]net.Interface{loopback})
	assert.Error(t, err)
}

func TestOSName(t *testing.T) {
	assert.Equal(t, "Windows", OSName("windows"))
	assert.Equal(t, "Linux", OSName("linux"))
	assert.Equal(t, "Darwin", OSName("darwin"))
	assert.Equal(t, "freebsd", OSName("freebsd"))
}
