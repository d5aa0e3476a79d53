// Package model implements the RTSM data model and the node registry.
//
// # Devices and Models
//
// A Device is one participant on the broker. It announces the Models it takes
// part in and, separately, the models for which it currently holds a valid
// state value (its has-state set). The has-state set is always a subset of
// the model set.
//
// A Model is a named, schema-described unit of application state. The name is
// the model's topic key, so it must be a single topic segment.
//
//	Node (local device)
//	├── Model "chat"   (document, state)
//	├── Model "notes"  (document, state)
//	└── Remote devices
//	    ├── Device A  models={chat}         has-state={}
//	    └── Device B  models={chat, notes}  has-state={notes}
//
// # Registry
//
// The Registry owns the local device, the locally registered models and the
// remote devices learned from announcements. Remote devices are created by
// the first announcement, merged on repeated announcements and removed only
// when their presence is retracted.
//
// All Registry methods are safe for concurrent use. Accessors return copies,
// so callers never observe a device being mutated underneath them.
package model
