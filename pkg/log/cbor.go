package log

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// CBOR modes for .rlog files. Encoding is canonical with RFC 3339
// nanosecond timestamps; decoding tolerates fields added by newer writers.
var (
	logEncMode cbor.EncMode
	logDecMode cbor.DecMode
)

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}
	logEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create log CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	logDecMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create log CBOR decoder mode: %v", err))
	}
}

// EncodeEvent encodes an Event as a CBOR map with integer keys.
func EncodeEvent(event Event) ([]byte, error) {
	data, err := logEncMode.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode %s event on %q: %w", event.Category, event.Topic, err)
	}
	return data, nil
}

// DecodeEvent decodes one CBOR-encoded Event.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	if err := logDecMode.Unmarshal(data, &event); err != nil {
		return Event{}, fmt.Errorf("decode event (%d bytes): %w", len(data), err)
	}
	return event, nil
}

// NewEncoder returns an encoder writing a CBOR sequence of events to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return logEncMode.NewEncoder(w)
}

// NewDecoder returns a decoder reading a CBOR sequence of events from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return logDecMode.NewDecoder(r)
}
