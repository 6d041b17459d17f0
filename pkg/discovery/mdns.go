// Package discovery advertises board servers on the local network and finds
// them again over mDNS.
package discovery

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/hashicorp/mdns"
)

const ServiceType = "_buddyboard._tcp"

const defaultBrowseTimeout = 2 * time.Second

// Peer is a board server found on the network.
type Peer struct {
	Instance string
	Addr     string
	Info     []string
}

// Advertiser answers mDNS queries until it is closed.
type Advertiser struct {
	server *mdns.Server
}

// Advertise publishes instance on port. host and ips may be empty to use the
// machine's hostname and addresses.
func Advertise(instance, host string, port int, ips []net.IP, info []string) (*Advertiser, error) {
	if host == "" {
		h, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("could not get hostname: %w", err)
		}
		host = h + "."
	}
	if len(ips) == 0 {
		ips = []net.IP{firstIPv4()}
	}

	service, err := newService(instance, host, port, ips, info)
	if err != nil {
		return nil, err
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("failed to start mDNS server: %w", err)
	}
	return &Advertiser{server: server}, nil
}

func (a *Advertiser) Close() error {
	return a.server.Shutdown()
}

func newService(instance, host string, port int, ips []net.IP, info []string) (*mdns.MDNSService, error) {
	service, err := mdns.NewMDNSService(instance, ServiceType, "", host, port, ips, info)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS service: %w", err)
	}
	return service, nil
}

// Browse queries the network until ctx is done or the browse timeout
// passes, and returns every distinct peer that answered.
func Browse(ctx context.Context) ([]Peer, error) {
	timeout := defaultBrowseTimeout
	if dl, ok := ctx.Deadline(); ok {
		timeout = time.Until(dl)
	}

	entries := make(chan *mdns.ServiceEntry, 16)
	collected := make(chan []Peer, 1)
	go func() {
		seen := make(map[string]bool)
		var peers []Peer
		for e := range entries {
			p, ok := peerFromEntry(e)
			if !ok || seen[p.Addr] {
				continue
			}
			seen[p.Addr] = true
			peers = append(peers, p)
		}
		collected <- peers
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true
	err := mdns.Query(params)
	close(entries)
	peers := <-collected
	if err != nil {
		return peers, fmt.Errorf("mDNS query: %w", err)
	}
	return peers, nil
}

func peerFromEntry(e *mdns.ServiceEntry) (Peer, bool) {
	if e == nil || e.AddrV4 == nil || e.Port == 0 {
		return Peer{}, false
	}
	return Peer{
		Instance: e.Name,
		Addr:     net.JoinHostPort(e.AddrV4.String(), fmt.Sprint(e.Port)),
		Info:     e.InfoFields,
	}, true
}

func firstIPv4() net.IP {
	ifaces, _ := net.Interfaces()
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, _ := iface.Addrs()
		for _, a := range addrs {
			if ipnet, ok := a.(*net.IPNet); ok && ipnet.IP.To4() != nil {
				return ipnet.IP.To4()
			}
		}
	}
	return net.IPv4(127, 0, 0, 1)
}
