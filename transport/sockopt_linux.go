//go:build linux

package transport

import (
	"fmt"
	"net/netip"
	"syscall"

	"golang.org/x/sys/unix"
)

// tcpMD5SigMaxKeyLen mirrors Linux's struct tcp_md5sig TCP_MD5SIG_MAXKEYLEN
// (include/uapi/linux/tcp.h): the kernel ABI fixes the key buffer at 80
// bytes regardless of the configured key's actual length.
const tcpMD5SigMaxKeyLen = 80

// applySocketOptions installs SO_REUSEADDR, TCP_MD5SIG, IP_TTL and
// IP_MINTTL before the handshake completes, the way ExaBGP's
// reactor/network/tcp.py sequences REUSEADDR/MD5/TTL/MIN_TTL setsockopt
// calls ahead of connect()/bind().
func applySocketOptions(c syscall.RawConn, cfg Config) error {
	var opErr error
	err := c.Control(func(fd uintptr) {
		if e := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); e != nil {
			opErr = fmt.Errorf("transport: SO_REUSEADDR: %w", e)
			return
		}
		if cfg.MD5Key != "" {
			if e := setMD5Sig(int(fd), cfg.RemoteAddr, cfg.MD5Key); e != nil {
				opErr = e
				return
			}
		}
		if cfg.TTL > 0 {
			if e := unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_TTL, cfg.TTL); e != nil {
				opErr = fmt.Errorf("transport: IP_TTL: %w", e)
				return
			}
			if cfg.GTSMCheck {
				if e := unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_MINTTL, cfg.TTL); e != nil {
					opErr = fmt.Errorf("transport: IP_MINTTL (GTSM): %w", e)
					return
				}
			}
		}
	})
	if err != nil {
		return err
	}
	return opErr
}

// setMD5Sig installs a TCP_MD5SIG signature key for the peer address
// (RFC 2385), matching struct tcp_md5sig's sockaddr_storage-then-key
// layout that Linux's TCP_MD5SIG setsockopt expects.
func setMD5Sig(fd int, addr netip.Addr, key string) error {
	if len(key) > tcpMD5SigMaxKeyLen {
		return fmt.Errorf("transport: MD5 key longer than %d bytes", tcpMD5SigMaxKeyLen)
	}
	sig := unix.TCPMD5Sig{}
	sig.Keylen = uint16(len(key))
	copy(sig.Key[:], key)

	if addr.Is4() {
		sig.Addr.Family = unix.AF_INET
		b := addr.As4()
		copy(sig.Addr.Data[2:6], b[:])
	} else {
		sig.Addr.Family = unix.AF_INET6
		b := addr.As16()
		copy(sig.Addr.Data[6:22], b[:])
	}
	if err := unix.SetsockoptTCPMD5Sig(fd, unix.IPPROTO_TCP, unix.TCP_MD5SIG, &sig); err != nil {
		return fmt.Errorf("transport: TCP_MD5SIG: %w", err)
	}
	return nil
}
