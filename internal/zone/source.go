package zone

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/url"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/jbweber/homelab/lookingglass/internal/domain"
	"github.com/miekg/dns"
)

const (
	// DefaultPort is used when a dns:// endpoint names no port
	DefaultPort = 53
	// TransferTimeout bounds a single zone transfer
	TransferTimeout = 10 * time.Second
	// MaxTransferSize bounds the captured transfer output
	MaxTransferSize = 10 * 1024 * 1024
)

// ErrOutputTooLarge is returned when a transfer exceeds MaxTransferSize
var ErrOutputTooLarge = errors.New("zone transfer output exceeds limit")

// ParseEndpoint splits a dns://host:port endpoint.
func ParseEndpoint(endpoint string) (string, int, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", 0, fmt.Errorf("invalid zone endpoint %q: %w", endpoint, err)
	}
	if u.Scheme != "dns" {
		return "", 0, fmt.Errorf("invalid zone endpoint %q: scheme must be dns", endpoint)
	}
	host := u.Hostname()
	if host == "" {
		return "", 0, fmt.Errorf("invalid zone endpoint %q: missing host", endpoint)
	}

	port := DefaultPort
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil || port < 1 || port > 65535 {
			return "", 0, fmt.Errorf("invalid zone endpoint %q: bad port", endpoint)
		}
	}
	return host, port, nil
}

// Transferer performs an AXFR and returns its output in presentation format
type Transferer interface {
	Transfer(ctx context.Context, zone, host string, port int) (string, error)
}

// DigTransferer shells out to dig
type DigTransferer struct {
	Path      string // dig binary, "dig" when empty
	MaxOutput int    // output cap in bytes, MaxTransferSize when zero
}

// Transfer runs dig @host -p port AXFR zone +noall +answer
func (d DigTransferer) Transfer(ctx context.Context, zone, host string, port int) (string, error) {
	path := d.Path
	if path == "" {
		path = "dig"
	}
	limit := d.MaxOutput
	if limit <= 0 {
		limit = MaxTransferSize
	}

	cmd := exec.CommandContext(ctx, path, "@"+host, "-p", strconv.Itoa(port), "AXFR", zone, "+noall", "+answer")
	stdout := &limitedBuffer{limit: limit}
	var stderr bytes.Buffer
	cmd.Stdout = stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	err := cmd.Run()
	if stdout.overflow {
		return "", fmt.Errorf("%w (%d bytes)", ErrOutputTooLarge, limit)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", fmt.Errorf("dig AXFR %s: %w", zone, ctxErr)
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", fmt.Errorf("dig AXFR %s: %w", zone, err)
		}
		return "", fmt.Errorf("dig AXFR %s: %w: %s", zone, err, msg)
	}

	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		log.Printf("dig stderr for %s: %s", zone, msg)
	}

	out := stdout.String()
	// dig exits 0 on a refused transfer and only reports it inline
	if strings.Contains(out, "; Transfer failed.") {
		return "", fmt.Errorf("dig AXFR %s: transfer failed", zone)
	}
	return out, nil
}

// NativeTransferer performs the AXFR in-process with miekg/dns
type NativeTransferer struct {
	MaxOutput int // output cap in bytes, MaxTransferSize when zero
}

// Transfer requests AXFR for zone and renders each RR on its own line
func (n NativeTransferer) Transfer(ctx context.Context, zone, host string, port int) (string, error) {
	limit := n.MaxOutput
	if limit <= 0 {
		limit = MaxTransferSize
	}

	msg := new(dns.Msg)
	msg.SetAxfr(dns.Fqdn(zone))

	tr := new(dns.Transfer)
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		tr.DialTimeout = remaining
		tr.ReadTimeout = remaining
		tr.WriteTimeout = remaining
	}

	envelopes, err := tr.In(msg, net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return "", fmt.Errorf("AXFR %s: %w", zone, err)
	}

	out := &limitedBuffer{limit: limit}
	for {
		select {
		case <-ctx.Done():
			// In closes the channel once its connection times out
			go drain(envelopes)
			return "", fmt.Errorf("AXFR %s: %w", zone, ctx.Err())
		case env, ok := <-envelopes:
			if !ok {
				return out.String(), nil
			}
			if env.Error != nil {
				go drain(envelopes)
				return "", fmt.Errorf("AXFR %s: %w", zone, env.Error)
			}
			for _, rr := range env.RR {
				if _, err := out.Write([]byte(rr.String() + "\n")); err != nil {
					go drain(envelopes)
					return "", fmt.Errorf("%w (%d bytes)", err, limit)
				}
			}
		}
	}
}

func drain(envelopes chan *dns.Envelope) {
	for range envelopes {
	}
}

// limitedBuffer accepts up to limit bytes and fails every write past it
type limitedBuffer struct {
	buf      bytes.Buffer
	limit    int
	overflow bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if b.buf.Len()+len(p) > b.limit {
		b.overflow = true
		return 0, ErrOutputTooLarge
	}
	return b.buf.Write(p)
}

func (b *limitedBuffer) String() string {
	return b.buf.String()
}

// ZoneSource fetches one configured zone
type ZoneSource interface {
	FetchZone(ctx context.Context, endpoint domain.ZoneEndpoint) domain.ZoneData
}

// Client transfers zones and parses them into records
type Client struct {
	transferer Transferer
	timeout    time.Duration
}

// NewClient creates a zone client using t, bounding each transfer by TransferTimeout
func NewClient(t Transferer) *Client {
	return &Client{transferer: t, timeout: TransferTimeout}
}

// FetchZone transfers and parses one zone. It never fails: errors are
// reported in ZoneData.Error alongside an empty record list.
func (c *Client) FetchZone(ctx context.Context, endpoint domain.ZoneEndpoint) domain.ZoneData {
	data := domain.ZoneData{Zone: endpoint.Name, Records: []domain.ZoneRecord{}}

	host, port, err := ParseEndpoint(endpoint.Endpoint)
	if err != nil {
		data.Error = err.Error()
		return data
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	output, err := c.transferer.Transfer(ctx, endpoint.Name, host, port)
	if err != nil {
		log.Printf("failed to fetch zone %s from %s: %v", endpoint.Name, endpoint.Endpoint, err)
		data.Error = err.Error()
		return data
	}

	data.Records = ParseTransfer(output, endpoint.Name)
	return data
}
