// Package schema validates model documents and the state values exchanged
// for them.
//
// A model document is a JSON object. Its info.title names the model and
// doubles as the model's topic key. An optional "state" member holds a JSON
// Schema that received state values are checked against:
//
//	{
//	  "info":  {"title": "chat", "version": "1.0.0"},
//	  "state": {"type": "object", "required": ["body"]}
//	}
//
// Validation of received state is observe-only: the engine reports the result
// to the application but never rejects a state value because of it.
package schema
