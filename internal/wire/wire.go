// Package wire encodes and decodes the advertisement message carried in
// each UDP datagram: a self-describing JSON object, one Encode, one
// Decode, a bounded receive buffer, and decoding that rejects malformed
// input rather than panicking on it.
package wire

import (
	"encoding/json"
	"fmt"
)

// MaxDatagramSize is the maximum UDP payload dvrd will read. Larger
// datagrams are truncated by the caller and will fail to decode here.
const MaxDatagramSize = 512

// NetworkHops is one (cidr, hops) pair as it appears in the wire
// message's "networks" array.
type NetworkHops struct {
	CIDR string
	Hops int
}

// MarshalJSON renders a NetworkHops as the two-element JSON array the
// wire format uses: ["cidr", hops].
func (n NetworkHops) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{n.CIDR, n.Hops})
}

// UnmarshalJSON parses a two-element JSON array into a NetworkHops.
func (n *NetworkHops) UnmarshalJSON(b []byte) error {
	var pair [2]json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil {
		return fmt.Errorf("wire: malformed network pair: %w", err)
	}
	if err := json.Unmarshal(pair[0], &n.CIDR); err != nil {
		return fmt.Errorf("wire: malformed cidr: %w", err)
	}
	if err := json.Unmarshal(pair[1], &n.Hops); err != nil {
		return fmt.Errorf("wire: malformed hops: %w", err)
	}
	if n.Hops < 0 {
		return fmt.Errorf("wire: negative hop count %d for %s", n.Hops, n.CIDR)
	}
	return nil
}

// Message is the advertisement carried in one UDP datagram.
type Message struct {
	RouterID string        `json:"router_id"`
	Networks []NetworkHops `json:"networks"`
}

// Encode renders a Message as JSON, erroring if the encoded form would
// exceed MaxDatagramSize so a caller never sends a datagram it knows the
// peer can't receive whole.
func Encode(m Message) ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("wire: encode: %w", err)
	}
	if len(b) > MaxDatagramSize {
		return nil, fmt.Errorf("wire: encoded message is %d bytes, exceeds max %d", len(b), MaxDatagramSize)
	}
	return b, nil
}

// Decode parses a received datagram. It rejects incomplete or malformed
// payloads without side effects; callers are expected to discard the
// datagram on error rather than abort anything else.
func Decode(b []byte) (Message, error) {
	var m Message
	if len(b) == 0 {
		return Message{}, fmt.Errorf("wire: empty datagram")
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return Message{}, fmt.Errorf("wire: decode: %w", err)
	}
	if m.RouterID == "" {
		return Message{}, fmt.Errorf("wire: missing router_id")
	}
	return m, nil
}
