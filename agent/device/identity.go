// Package device derives a stable per-machine fingerprint used to partition
// semantic memory. It is a best-effort partition key, not a security
// credential: collisions between distinct machines are accepted.
package device

import (
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"runtime"
	"sync"
)

// hardwareSentinel replaces the MAC-derived number when no usable interface
// address can be read, so the fingerprint stays computable everywhere.
const hardwareSentinel uint64 = 0

var cachedID = sync.OnceValue(func() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown-host"
	}
	return fingerprint(hostname, processorInfo(), osInfo(), hardwareNumber())
})

// ID returns the device hash for the current machine. The value is computed
// once per process and never recomputed; repeated calls in one process and
// calls across processes on the same machine yield the same value.
func ID() string {
	return cachedID()
}

// fingerprint joins the identity components in a fixed order with a fixed
// delimiter and digests them. The layout must stay stable across releases or
// every machine silently loses its memory partition.
func fingerprint(hostname, processor, osDescription string, hardware uint64) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s:%s:%s:%d", hostname, processor, osDescription, hardware)))
	return hex.EncodeToString(sum[:])
}

func processorInfo() string {
	return fmt.Sprintf("%s/%d", runtime.GOARCH, runtime.NumCPU())
}

func osInfo() string {
	return runtime.GOOS
}

// hardwareNumber returns the first non-loopback MAC address as an integer,
// or the sentinel when none is available.
func hardwareNumber() uint64 {
	ifaces, err := net.Interfaces()
	if err != nil {
		return hardwareSentinel
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		hw := iface.HardwareAddr
		if len(hw) == 0 {
			continue
		}
		buf := make([]byte, 8)
		copy(buf[8-len(hw):], hw)
		return binary.BigEndian.Uint64(buf)
	}
	return hardwareSentinel
}
