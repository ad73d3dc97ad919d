package awaitcall

import (
	"github.com/pkg/errors"
)

// Codec converts envelopes to and from the transport's message values. The
// zero value uses DefaultChannel.
type Codec struct {
	// Channel is the marker that tags this codec's envelopes. Messages with
	// a different marker are treated as foreign traffic.
	Channel string
}

func (c Codec) channel() string {
	if c.Channel == "" {
		return DefaultChannel
	}
	return c.Channel
}

// Encode stamps the envelope with the codec's channel and serializes it.
// Envelopes that violate their kind's invariants, or that hold values which
// can't be serialized, are rejected.
func (c Codec) Encode(env *Envelope) ([]byte, error) {
	stamped := *env
	stamped.Channel = c.channel()
	if err := stamped.Validate(); err != nil {
		return nil, err
	}
	msg, err := jsonAPI.Marshal(&stamped)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode %s envelope", env.Kind)
	}
	return msg, nil
}

// marker is the minimal shape probed before decoding a full envelope.
type marker struct {
	Channel string `json:"channel"`
}

// Decode parses a transport message. It returns false for anything that is
// not a valid envelope on this codec's channel, it never fails.
func (c Codec) Decode(msg []byte) (*Envelope, bool) {
	if !isObject(msg) {
		return nil, false
	}
	var m marker
	if err := jsonAPI.Unmarshal(msg, &m); err != nil || m.Channel != c.channel() {
		return nil, false
	}
	var env Envelope
	if err := jsonAPI.Unmarshal(msg, &env); err != nil {
		return nil, false
	}
	if err := env.Validate(); err != nil {
		return nil, false
	}
	return &env, true
}
