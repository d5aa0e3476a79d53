// Package discovery implements mDNS/DNS-SD discovery for RTSM nodes.
//
// Two service types are used:
//
// # Broker Discovery (_mqtt._tcp)
//
// MQTT brokers commonly advertise themselves (e.g. Mosquitto with Avahi).
// A node started without a configured broker browses for this service and
// connects to the first one found.
//
// # Node Advertisement (_rtsm._tcp)
//
// A running node may advertise itself so that LAN tools can list the RTSM
// participants without joining the broker. The instance name is the device
// ID. TXT records include: id (device ID), name (display name), models
// (comma-separated model names) and broker (the broker URL in use).
// The advertised port is informational; nodes talk through the broker only.
package discovery
