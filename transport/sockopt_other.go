//go:build !linux

package transport

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// applySocketOptions installs the options this OS actually supports.
// TCP_MD5SIG is Linux/FreeBSD-specific kernel ABI the x/sys/unix package
// does not expose uniformly off Linux, so a configured MD5 key on any
// other platform is a hard configuration error rather than a silent
// no-op (ExaBGP's tcp.py takes the same stance per-platform).
func applySocketOptions(c syscall.RawConn, cfg Config) error {
	if cfg.MD5Key != "" {
		return fmt.Errorf("transport: TCP MD5 signature is not supported on this platform")
	}
	var opErr error
	err := c.Control(func(fd uintptr) {
		if e := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); e != nil {
			opErr = fmt.Errorf("transport: SO_REUSEADDR: %w", e)
			return
		}
		if cfg.TTL > 0 {
			if e := unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_TTL, cfg.TTL); e != nil {
				opErr = fmt.Errorf("transport: IP_TTL: %w", e)
			}
		}
	})
	if err != nil {
		return err
	}
	return opErr
}
