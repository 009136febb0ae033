package zone

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	ipv4ReverseZone = "in-addr.arpa"
	ipv6ReverseZone = "ip6.arpa"
)

var (
	// ErrNotReverseName is returned for owners outside in-addr.arpa and ip6.arpa
	ErrNotReverseName = errors.New("not a reverse lookup name")

	// ErrMalformedReverseName is returned for reverse owners that do not encode
	// a full address
	ErrMalformedReverseName = errors.New("malformed reverse lookup name")
)

// ReverseToIP decodes a reverse lookup owner name into the address it stands for.
//
//	100.129.168.192.in-addr.arpa. -> 192.168.129.100
//	b.a.9.8.7.6.5.0.4.0.0.0.3.0.0.0.2.0.0.0.1.0.0.0.0.0.0.0.1.2.3.4.ip6.arpa. -> 4321:0000:0001:0002:0003:0004:0567:89ab
//
// Only complete names are accepted: four octets or 32 nibbles. RFC 2317
// classless owners (5.0/25.2.168.192.in-addr.arpa.) decode to the host they
// delegate. Anything else under the reverse zones is ErrMalformedReverseName.
func ReverseToIP(owner string) (string, error) {
	name := strings.ToLower(strings.TrimSuffix(owner, "."))

	if labels, ok := underZone(name, ipv4ReverseZone); ok {
		return reverseIPv4(labels)
	}
	if labels, ok := underZone(name, ipv6ReverseZone); ok {
		return reverseIPv6(labels)
	}
	return "", fmt.Errorf("%w: %s", ErrNotReverseName, owner)
}

// underZone reports whether name is zone or below it, returning the labels
// in front of zone
func underZone(name, zone string) (string, bool) {
	if name == zone {
		return "", true
	}
	return strings.CutSuffix(name, "."+zone)
}

func reverseIPv4(labels string) (string, error) {
	octets := strings.Split(labels, ".")
	if len(octets) == 5 && isClasslessLabel(octets[1]) {
		octets = append(octets[:1], octets[2:]...)
	}
	if len(octets) != 4 {
		return "", fmt.Errorf("%w: expected 4 octets, got %d", ErrMalformedReverseName, len(octets))
	}

	out := make([]string, 4)
	for i, octet := range octets {
		if _, err := strconv.ParseUint(octet, 10, 8); err != nil {
			return "", fmt.Errorf("%w: bad octet %q", ErrMalformedReverseName, octet)
		}
		out[3-i] = octet
	}
	return strings.Join(out, "."), nil
}

func reverseIPv6(labels string) (string, error) {
	nibbles := strings.Split(labels, ".")
	if len(nibbles) != 32 {
		return "", fmt.Errorf("%w: expected 32 nibbles, got %d", ErrMalformedReverseName, len(nibbles))
	}

	var b strings.Builder
	b.Grow(39)
	for i := 31; i >= 0; i-- {
		nibble := nibbles[i]
		if len(nibble) != 1 || !isHexDigit(nibble[0]) {
			return "", fmt.Errorf("%w: bad nibble %q", ErrMalformedReverseName, nibble)
		}
		b.WriteString(nibble)
		if i%4 == 0 && i != 0 {
			b.WriteByte(':')
		}
	}
	return b.String(), nil
}

func isHexDigit(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f')
}

// isClasslessLabel matches the RFC 2317 subnet label, "0/25" or "0-25"
func isClasslessLabel(label string) bool {
	return strings.ContainsAny(label, "/-")
}
