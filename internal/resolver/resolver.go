package resolver

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// ComputerRecord is one computer object from the directory service
type ComputerRecord struct {
	Name        string // short name (cn)
	DNSHostName string
	Enabled     bool
}

// DirectoryClient is the read-only directory lookup used for discovery
type DirectoryClient interface {
	SearchComputers(ctx context.Context) ([]ComputerRecord, error)
}

// DiscoveryError is fatal to the whole run: no dispatch happens after a
// failed or malformed directory query.
type DiscoveryError struct {
	Err error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("host discovery failed: %v", e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// Resolver produces the list of target hosts for a run
type Resolver struct {
	Dir    DirectoryClient
	Domain string // overrides the local machine's DNS domain when set
	Logger *zap.Logger
}

// prefixLength is how much of the domain name keys the environment-specific
// machine naming convention.
const prefixLength = 4

// Resolve returns the explicit list unchanged when non-empty; otherwise it
// queries the directory for enabled computer objects with a network name
// whose short name starts with the domain-derived prefix, sorted ascending.
// An empty result is not an error.
func (r *Resolver) Resolve(ctx context.Context, explicit []string) ([]string, error) {
	if len(explicit) > 0 {
		return explicit, nil
	}

	if r.Dir == nil {
		return nil, &DiscoveryError{Err: fmt.Errorf("no explicit hosts and no directory configured")}
	}

	prefix := NamePrefix(r.localDomain())
	if prefix == "" {
		return nil, &DiscoveryError{Err: fmt.Errorf("cannot derive name prefix: local domain unknown")}
	}

	records, err := r.Dir.SearchComputers(ctx)
	if err != nil {
		return nil, &DiscoveryError{Err: err}
	}

	var hosts []string
	for _, rec := range records {
		if !rec.Enabled || rec.DNSHostName == "" {
			continue
		}
		// Case-sensitive on purpose: the naming convention is exact.
		if !strings.HasPrefix(rec.Name, prefix) {
			continue
		}
		hosts = append(hosts, rec.Name)
	}
	sort.Strings(hosts)

	r.Logger.Info("Resolved hosts from directory",
		zap.String("prefix", prefix),
		zap.Int("candidates", len(records)),
		zap.Int("matched", len(hosts)))

	return hosts, nil
}

func (r *Resolver) localDomain() string {
	if r.Domain != "" {
		return r.Domain
	}
	return os.Getenv("USERDNSDOMAIN")
}

// NamePrefix derives the machine-name prefix from a DNS domain name: its
// first four characters, or the whole name when shorter.
func NamePrefix(domain string) string {
	if len(domain) <= prefixLength {
		return domain
	}
	return domain[:prefixLength]
}
