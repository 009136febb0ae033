package domain

// Lease states reported by Kea in the "state" field.
const (
	LeaseStateDefault          = 0
	LeaseStateDeclined         = 1
	LeaseStateExpiredReclaimed = 2
)

// Segment is one configured Kea control agent (a DHCP network segment)
type Segment struct {
	Name string `json:"name"` // Segment name, used as the lease store key (e.g., "128")
	URL  string `json:"url"`  // Base URL of the Kea control agent
}

// ZoneEndpoint names a zone and the DNS server it is transferred from
type ZoneEndpoint struct {
	Name     string `json:"name"`     // Zone name (e.g., "example.com")
	Endpoint string `json:"endpoint"` // dns://host:port
}

// KeaLease is a single lease as returned by lease4-get-all
type KeaLease struct {
	IPAddress string `json:"ip-address"`
	HWAddress string `json:"hw-address"`
	Hostname  string `json:"hostname,omitempty"`
	SubnetID  int64  `json:"subnet-id"`
	ValidLft  int64  `json:"valid-lft"`
	Cltt      int64  `json:"cltt"`
	State     int    `json:"state"`
	FqdnFwd   bool   `json:"fqdn-fwd,omitempty"`
	FqdnRev   bool   `json:"fqdn-rev,omitempty"`
	ClientID  string `json:"client-id,omitempty"`
}

// Lease is a lease observation persisted in the lease history
type Lease struct {
	ID        int64  `db:"id"`
	Segment   string `db:"segment"` // Name of the segment the lease was observed on
	IPAddress string `db:"ip_address"`
	HWAddress string `db:"hw_address"`
	Hostname  string `db:"hostname"`  // Empty when Kea reported none
	SubnetID  int64  `db:"subnet_id"` // Kea subnet identifier
	ValidLft  int64  `db:"valid_lft"` // Valid lifetime in seconds
	Cltt      int64  `db:"cltt"`      // Client last transaction time (epoch seconds)
	State     int    `db:"state"`
	FqdnFwd   bool   `db:"fqdn_fwd"`
	FqdnRev   bool   `db:"fqdn_rev"`
	ClientID  string `db:"client_id"`
	CreatedAt int64  `db:"created_at"` // First observation (epoch seconds)
	UpdatedAt int64  `db:"updated_at"` // Latest observation (epoch seconds)
}

// ZoneRecord is one resource record from a zone transfer
type ZoneRecord struct {
	Name      string `json:"name"`                // Owner relative to the zone, "@" for the apex
	Type      string `json:"type"`                // A, AAAA, PTR, CNAME, TXT, ...
	TTL       *int64 `json:"ttl,omitempty"`       // Absent when the TTL field did not parse
	Value     string `json:"value"`               // Raw rdata
	ForwardIP string `json:"forwardIp,omitempty"` // PTR only: address encoded in the owner name
	FQDN      string `json:"fqdn,omitempty"`      // PTR only: target without the trailing dot
}

// ZoneData is the result of transferring one zone
type ZoneData struct {
	Zone    string       `json:"zone"`
	Records []ZoneRecord `json:"records"`
	Error   string       `json:"error,omitempty"`
}
