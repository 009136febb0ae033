// Package zone turns AXFR output into records for the dashboard.
package zone

import (
	"bufio"
	"errors"
	"strconv"
	"strings"

	"github.com/jbweber/homelab/lookingglass/internal/domain"
)

// ParseTransfer parses presentation-format AXFR output (one RR per line:
// owner, TTL, class, type, rdata) for zone. Comments, blank lines, lines with
// fewer than five fields, SOA and NS records, and PTR records whose reverse
// owner does not encode a full address are skipped.
func ParseTransfer(output, zone string) []domain.ZoneRecord {
	zone = strings.TrimSuffix(zone, ".")
	apex := zone + "."
	suffix := "." + apex

	records := []domain.ZoneRecord{}
	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, ";") || strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 5 {
			continue
		}

		owner, ttlField, rrType := fields[0], fields[1], fields[3]
		if rrType == "SOA" || rrType == "NS" {
			continue
		}

		record := domain.ZoneRecord{
			Name:  relativeName(owner, apex, suffix),
			Type:  rrType,
			Value: strings.Join(fields[4:], " "),
		}
		if ttl, err := strconv.ParseInt(ttlField, 10, 64); err == nil {
			record.TTL = &ttl
		}

		if rrType == "PTR" {
			ip, err := ReverseToIP(owner)
			if errors.Is(err, ErrMalformedReverseName) {
				continue
			}
			// forward-zone PTRs (DNS-SD) carry no address
			record.ForwardIP = ip
			record.FQDN = strings.TrimSuffix(record.Value, ".")
		}

		records = append(records, record)
	}

	return records
}

// relativeName strips the zone from owner; names outside the zone are kept whole.
func relativeName(owner, apex, suffix string) string {
	switch {
	case owner == apex:
		return "@"
	case strings.HasSuffix(owner, suffix):
		return strings.TrimSuffix(owner, suffix)
	default:
		return owner
	}
}
