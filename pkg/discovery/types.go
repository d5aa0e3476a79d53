package discovery

import (
	"errors"
	"net"
	"strconv"
	"time"
)

// Service types and domain.
const (
	ServiceTypeBroker = "_mqtt._tcp"
	ServiceTypeNode   = "_rtsm._tcp"
	Domain            = "local."
)

// TXT record keys of the node service.
const (
	TXTKeyID     = "id"
	TXTKeyName   = "name"
	TXTKeyModels = "models"
	TXTKeyBroker = "broker"
)

// MaxInstanceNameLen is the DNS-SD instance label limit.
const MaxInstanceNameLen = 63

// Discovery errors.
var (
	ErrMissingRequired     = errors.New("missing required TXT record")
	ErrInstanceNameTooLong = errors.New("instance name too long")
	ErrNotFound            = errors.New("service not found")
)

// BrokerService is a discovered MQTT broker.
type BrokerService struct {
	// InstanceName is the DNS-SD instance name.
	InstanceName string

	// Host is the advertised host name.
	Host string

	// Port is the broker port.
	Port uint16

	// Addresses contains resolved IP addresses, IPv4 first.
	Addresses []string
}

// URL returns a tcp:// broker URL. A resolved address is preferred over the
// host name.
func (s *BrokerService) URL() string {
	host := s.Host
	if len(s.Addresses) > 0 {
		host = s.Addresses[0]
	}
	return "tcp://" + net.JoinHostPort(host, strconv.Itoa(int(s.Port)))
}

// NodeInfo is advertised by a running node.
type NodeInfo struct {
	ID     string
	Name   string
	Models []string
	Broker string
}

// BrowserConfig configures an MDNSBrowser.
type BrowserConfig struct {
	// Interface restricts browsing to one network interface. Empty means all.
	Interface string
}

// AdvertiserConfig configures an MDNSAdvertiser.
type AdvertiserConfig struct {
	// Interface restricts advertising to one network interface. Empty means all.
	Interface string

	// TTL overrides the record TTL when non-zero.
	TTL time.Duration
}

// DefaultAdvertiserConfig returns the default advertiser configuration.
func DefaultAdvertiserConfig() AdvertiserConfig {
	return AdvertiserConfig{TTL: 120 * time.Second}
}
