// Package presence tracks liveness of RTSM devices.
//
// Every node keeps a retained message on online/{id}: "true" while it is
// alive and empty once it is gone. The empty payload is either published by
// the node on a graceful shutdown or by the broker as the connection's
// last-will. Peers subscribe to online/+ and forget a device as soon as its
// presence turns false.
//
// A Tracker owns the local side of that protocol (the will, going online and
// retracting) and interprets presence payloads of other devices.
package presence
