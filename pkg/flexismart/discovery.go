package flexismart

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

// DiscoveryResult represents a gateway that answered a discovery ping.
type DiscoveryResult struct {
	IP string
}

// Discover searches for FlexiSmart gateways on the local network.
// It broadcasts a ping to every local IPv4 subnet on port 6653 and collects
// the gateways that answer.
// The context controls the overall discovery timeout.
// If the context has no deadline, a 3-second timeout is applied.
func Discover(ctx context.Context) ([]DiscoveryResult, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
	}

	targets, err := broadcastAddrs()
	if err != nil {
		return nil, fmt.Errorf("get broadcast addresses: %w", err)
	}

	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp4", ":0")
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	defer conn.Close()

	probe := NewPacket(0, CmdPing, nil).Encode()
	port := strconv.Itoa(DefaultPort)
	for _, ip := range targets {
		addr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(ip.String(), port))
		if err != nil {
			continue
		}
		// Unreachable subnets are not an error for discovery.
		_, _ = conn.WriteTo(probe, addr)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}

	seen := make(map[string]bool)
	var results []DiscoveryResult
	buf := make([]byte, headerLen+MaxDataLen+crcLen)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			// Deadline reached or socket closed: discovery is over.
			return results, nil
		}

		p, err := Decode(buf[:n])
		if err != nil || p.Command != CmdPing {
			continue
		}

		udpAddr, ok := from.(*net.UDPAddr)
		if !ok {
			continue
		}
		ip := udpAddr.IP.String()
		if seen[ip] {
			continue
		}
		seen[ip] = true
		results = append(results, DiscoveryResult{IP: ip})

		select {
		case <-ctx.Done():
			return results, nil
		default:
		}
	}
}

// broadcastAddrs returns the limited broadcast address plus the directed
// broadcast address of every non-loopback IPv4 interface network.
func broadcastAddrs() ([]net.IP, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}

	ips := []net.IP{net.IPv4bcast}
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		ip4 := ipnet.IP.To4()
		if ip4 == nil {
			continue
		}
		mask := ipnet.Mask
		if len(mask) == net.IPv6len {
			mask = mask[12:]
		}
		bcast := make(net.IP, net.IPv4len)
		for i := range bcast {
			bcast[i] = ip4[i] | ^mask[i]
		}
		ips = append(ips, bcast)
	}
	return ips, nil
}
