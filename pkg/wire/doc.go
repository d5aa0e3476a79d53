// Package wire defines the message format exchanged between RTSM nodes.
//
// Messages on model topics are JSON envelopes:
//
//	{"action": "device", "data": {"device": {...}, "new": true}}
//
// The data member's shape depends on the action:
//
//	device          {"device": Device, "new": bool}
//	has-state       {"device": Device, "value": bool}
//	request-state   {"device": Device}
//	response-state  {"device": Device, "state": any}
//	migration       {"device": Device}
//
// In every action "device" is the sender. Devices use the field names
// "_id", "name", "models" and "models_has_state".
//
// # Presence
//
// Presence topics are not enveloped. The retained payload is the bare text
// "true" while a device is online; an empty payload (left by the broker's
// last-will, or by an explicit retraction) means the device is gone. "false"
// is accepted as offline as well.
package wire
