package awaitcall

import (
	"encoding/json"
	"fmt"
)

// DefaultChannel is the marker carried by envelopes when no channel is
// configured.
const DefaultChannel = "await-call"

// Kind is the envelope type.
type Kind string

const (
	KindInvoke     Kind = "invoke"
	KindReplyOK    Kind = "reply-ok"
	KindReplyError Kind = "reply-error"
)

func (k Kind) valid() bool {
	switch k {
	case KindInvoke, KindReplyOK, KindReplyError:
		return true
	}
	return false
}

// Envelope is the only value that crosses the boundary between the two
// contexts. Invocations carry Name and Payload (a JSON array of positional
// arguments), successful replies carry Payload (the return value) and failed
// replies carry Error.
type Envelope struct {
	Channel string          `json:"channel"`
	Kind    Kind            `json:"kind"`
	ID      string          `json:"id"`
	Name    string          `json:"name,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *RemoteError    `json:"error,omitempty"`
}

// InvalidEnvelopeError describes why an envelope does not satisfy the
// invariants of its kind.
type InvalidEnvelopeError struct {
	Kind   Kind
	Reason string
}

func (err InvalidEnvelopeError) Error() string {
	return fmt.Sprintf("invalid %q envelope: %s", err.Kind, err.Reason)
}

// Validate checks that the populated fields are consistent with Kind.
func (env *Envelope) Validate() error {
	if !env.Kind.valid() {
		return InvalidEnvelopeError{env.Kind, "unknown kind"}
	}
	if env.ID == "" {
		return InvalidEnvelopeError{env.Kind, "missing id"}
	}
	switch env.Kind {
	case KindInvoke:
		if env.Name == "" {
			return InvalidEnvelopeError{env.Kind, "missing name"}
		}
		if env.Error != nil {
			return InvalidEnvelopeError{env.Kind, "unexpected error"}
		}
		if len(env.Payload) > 0 && !isArray(env.Payload) {
			return InvalidEnvelopeError{env.Kind, "payload is not an argument list"}
		}
	case KindReplyOK:
		if env.Name != "" || env.Error != nil {
			return InvalidEnvelopeError{env.Kind, "unexpected name or error"}
		}
	case KindReplyError:
		if env.Name != "" || len(env.Payload) > 0 {
			return InvalidEnvelopeError{env.Kind, "unexpected name or payload"}
		}
		if env.Error == nil {
			return InvalidEnvelopeError{env.Kind, "missing error"}
		}
	}
	return nil
}

func (env *Envelope) String() string {
	switch env.Kind {
	case KindInvoke:
		return fmt.Sprintf("%s#%s %s(%s)", env.Kind, env.ID, env.Name, env.Payload)
	case KindReplyError:
		return fmt.Sprintf("%s#%s %s", env.Kind, env.ID, env.Error)
	}
	return fmt.Sprintf("%s#%s %s", env.Kind, env.ID, env.Payload)
}
