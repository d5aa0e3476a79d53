package discovery

import (
	"context"
	"fmt"
	"net"
	"slices"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// MDNSAdvertiser advertises an RTSM node using zeroconf.
type MDNSAdvertiser struct {
	config AdvertiserConfig

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewMDNSAdvertiser creates a new mDNS advertiser.
func NewMDNSAdvertiser(config AdvertiserConfig) *MDNSAdvertiser {
	return &MDNSAdvertiser{config: config}
}

// getInterfaces returns the network interfaces to use for advertising.
// Returns nil to use all interfaces.
func (a *MDNSAdvertiser) getInterfaces() []net.Interface {
	return selectInterface(a.config.Interface)
}

// AdvertiseNode registers the node service, replacing any previous
// advertisement. The instance name is the device ID.
func (a *MDNSAdvertiser) AdvertiseNode(info *NodeInfo, port int) error {
	if err := ValidateInstanceName(info.ID); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	txtStrings := TXTRecordsToStrings(EncodeNodeTXT(info))

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	server, err := zeroconf.Register(
		info.ID,
		ServiceTypeNode,
		Domain,
		port,
		txtStrings,
		a.getInterfaces(),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to register node service: %w", err)
	}

	a.server = server
	return nil
}

// Stop withdraws the advertisement.
func (a *MDNSAdvertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// MDNSBrowser browses for brokers and nodes using zeroconf.
type MDNSBrowser struct {
	config BrowserConfig
	query  queryFunc
}

// queryFunc runs one mDNS browse, sending answers on entries and goodbyes on
// removed until ctx is done.
type queryFunc func(ctx context.Context, service string, entries, removed chan *zeroconf.ServiceEntry, opts []zeroconf.ClientOption) error

func zeroconfQuery(ctx context.Context, service string, entries, removed chan *zeroconf.ServiceEntry, opts []zeroconf.ClientOption) error {
	return zeroconf.Browse(ctx, service, Domain, entries, removed, opts...)
}

// NewMDNSBrowser creates a new mDNS browser.
func NewMDNSBrowser(config BrowserConfig) *MDNSBrowser {
	return &MDNSBrowser{config: config, query: zeroconfQuery}
}

// BrowseBrokers streams MQTT brokers as they are found. Each instance is
// emitted once while it has addresses; it is emitted again after all its
// addresses were withdrawn.
// The channel is closed when ctx is done.
func (b *MDNSBrowser) BrowseBrokers(ctx context.Context) <-chan *BrokerService {
	return browse(ctx, b, ServiceTypeBroker, entryToBroker,
		func(s *BrokerService) *[]string { return &s.Addresses })
}

// BrowseNodes streams advertised RTSM nodes.
func (b *MDNSBrowser) BrowseNodes(ctx context.Context) <-chan *NodeService {
	return browse(ctx, b, ServiceTypeNode, entryToNode,
		func(s *NodeService) *[]string { return &s.Addresses })
}

// FindBroker returns the first broker found within timeout.
func (b *MDNSBrowser) FindBroker(ctx context.Context, timeout time.Duration) (*BrokerService, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for svc := range b.BrowseBrokers(ctx) {
		return svc, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, ServiceTypeBroker)
}

// NodeService is a discovered RTSM node advertisement.
type NodeService struct {
	NodeInfo

	InstanceName string
	Host         string
	Addresses    []string
}

func browse[T any](
	ctx context.Context,
	b *MDNSBrowser,
	service string,
	convert func(*zeroconf.ServiceEntry) *T,
	addrs func(*T) *[]string,
) <-chan *T {
	out := make(chan *T)

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	opts := b.browserOptions()

	// Aggregate answers per instance; closing entries ends the stream.
	go func() {
		defer close(out)

		// Known addresses per instance. Emitted values are never mutated.
		known := make(map[string][]string)
		gone := removed

		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				svc := convert(entry)
				if svc == nil {
					continue
				}

				if existing, found := known[entry.Instance]; found {
					known[entry.Instance] = mergeAddresses(existing, *addrs(svc))
					continue
				}
				known[entry.Instance] = slices.Clone(*addrs(svc))
				select {
				case out <- svc:
				case <-ctx.Done():
					return
				}

			case entry, ok := <-gone:
				if !ok {
					gone = nil
					continue
				}
				if existing, found := known[entry.Instance]; found {
					remaining := removeAddresses(existing, entry)
					if len(remaining) == 0 {
						delete(known, entry.Instance)
					} else {
						known[entry.Instance] = remaining
					}
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		_ = b.query(ctx, service, entries, removed, opts)
	}()

	return out
}

// browserOptions returns zeroconf client options based on config.
func (b *MDNSBrowser) browserOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption
	if ifaces := selectInterface(b.config.Interface); ifaces != nil {
		opts = append(opts, zeroconf.SelectIfaces(ifaces))
	}
	return opts
}

func selectInterface(name string) []net.Interface {
	if name == "" {
		return nil
	}
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

func entryToBroker(entry *zeroconf.ServiceEntry) *BrokerService {
	if entry.Port <= 0 {
		return nil
	}
	return &BrokerService{
		InstanceName: entry.Instance,
		Host:         entry.HostName,
		Port:         uint16(entry.Port),
		Addresses:    entryAddresses(entry),
	}
}

func entryToNode(entry *zeroconf.ServiceEntry) *NodeService {
	info, err := DecodeNodeTXT(StringsToTXTRecords(entry.Text))
	if err != nil {
		return nil
	}
	return &NodeService{
		NodeInfo:     *info,
		InstanceName: entry.Instance,
		Host:         entry.HostName,
		Addresses:    entryAddresses(entry),
	}
}

// entryAddresses collects addresses, IPv4 first.
func entryAddresses(entry *zeroconf.ServiceEntry) []string {
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return addrs
}

// mergeAddresses adds new addresses to existing, avoiding duplicates.
func mergeAddresses(existing, new []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}

	for _, addr := range new {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

// removeAddresses drops the addresses carried by a removal entry.
func removeAddresses(addresses []string, entry *zeroconf.ServiceEntry) []string {
	toRemove := make(map[string]bool)
	for _, ip := range entry.AddrIPv4 {
		toRemove[ip.String()] = true
	}
	for _, ip := range entry.AddrIPv6 {
		toRemove[ip.String()] = true
	}

	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !toRemove[addr] {
			result = append(result, addr)
		}
	}
	return result
}
