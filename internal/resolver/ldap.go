package resolver

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-ldap/ldap/v3"
	"github.com/stone-age-io/nbtoff/internal/config"
	"go.uber.org/zap"
)

// Account-disabled bit of userAccountControl
const uacAccountDisabled = 0x2

// computerFilter selects computer objects that have an assigned network
// name; the enabled check happens client-side from userAccountControl so a
// malformed attribute surfaces as an error instead of a silent mismatch.
const computerFilter = "(&(objectCategory=computer)(dNSHostName=*))"

var computerAttributes = []string{"cn", "dNSHostName", "userAccountControl"}

// LDAPDirectory queries an Active Directory style LDAP server for computer
// objects.
type LDAPDirectory struct {
	cfg    config.DiscoveryConfig
	logger *zap.Logger
}

// NewLDAPDirectory creates a directory client from discovery config
func NewLDAPDirectory(cfg config.DiscoveryConfig, logger *zap.Logger) *LDAPDirectory {
	return &LDAPDirectory{cfg: cfg, logger: logger}
}

// SearchComputers runs a paged search over all computer objects under the
// configured base DN.
func (d *LDAPDirectory) SearchComputers(ctx context.Context) ([]ComputerRecord, error) {
	conn, err := ldap.DialURL(d.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", d.cfg.URL, err)
	}
	defer conn.Close()

	if d.cfg.Timeout > 0 {
		conn.SetTimeout(d.cfg.Timeout)
	}

	if d.cfg.BindDN != "" {
		if err := conn.Bind(d.cfg.BindDN, d.cfg.BindPassword); err != nil {
			return nil, fmt.Errorf("bind as %s: %w", d.cfg.BindDN, err)
		}
	} else {
		if err := conn.UnauthenticatedBind(""); err != nil {
			return nil, fmt.Errorf("anonymous bind: %w", err)
		}
	}

	req := ldap.NewSearchRequest(
		d.cfg.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0, 0, false,
		computerFilter,
		computerAttributes,
		nil,
	)

	sr, err := conn.SearchWithPaging(req, 500)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", d.cfg.BaseDN, err)
	}

	records := make([]ComputerRecord, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		uacRaw := entry.GetAttributeValue("userAccountControl")
		uac, err := strconv.Atoi(uacRaw)
		if err != nil {
			return nil, fmt.Errorf("malformed userAccountControl %q on %s: %w", uacRaw, entry.DN, err)
		}

		records = append(records, ComputerRecord{
			Name:        entry.GetAttributeValue("cn"),
			DNSHostName: entry.GetAttributeValue("dNSHostName"),
			Enabled:     uac&uacAccountDisabled == 0,
		})
	}

	d.logger.Debug("Directory search complete",
		zap.String("base_dn", d.cfg.BaseDN),
		zap.Int("entries", len(records)))

	return records, nil
}
