package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"sync"

	"ipwatch/internal/config"
	"ipwatch/internal/version"

	"github.com/cloudflare/cloudflare-go"
	"go.uber.org/zap"
)

// CloudflareNotifier keeps a DNS record pointing at the current address.
// Only records of the new address's family are touched, so an A record
// change leaves AAAA records alone and vice versa.
type CloudflareNotifier struct {
	config *config.CloudflareConfig
	api    *cloudflare.API
	logger *zap.Logger

	mu     sync.Mutex
	zoneID string
}

// NewCloudflareNotifier creates a DNS notifier. The token is not verified until the first update.
func NewCloudflareNotifier(cfg *config.CloudflareConfig, logger *zap.Logger) (*CloudflareNotifier, error) {
	if !cfg.Enabled {
		return nil, errors.New("cloudflare notifier is disabled")
	}

	opts := []cloudflare.Option{
		cloudflare.HTTPClient(&http.Client{Timeout: cfg.Timeout}),
		cloudflare.UserAgent(version.GetInfo().UserAgent()),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, cloudflare.BaseURL(cfg.BaseURL))
	}

	api, err := cloudflare.NewWithAPIToken(cfg.APIToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create cloudflare client: %w", err)
	}

	return &CloudflareNotifier{
		config: cfg,
		api:    api,
		logger: logger.With(zap.String("record", cfg.Record)),
		zoneID: cfg.ZoneID,
	}, nil
}

// Notify replaces the record's A or AAAA content with the observed address
func (n *CloudflareNotifier) Notify(ctx context.Context, msg Message) error {
	addr := msg.Observation.Address.Unmap()
	if !addr.IsValid() {
		return errors.New("invalid address")
	}

	zid, err := n.zone(ctx)
	if err != nil {
		return err
	}
	rc := cloudflare.ZoneIdentifier(zid)
	rtype := recordType(addr)

	records, _, err := n.api.ListDNSRecords(ctx, rc, cloudflare.ListDNSRecordsParams{
		Type: rtype,
		Name: n.config.Record,
	})
	if err != nil {
		return fmt.Errorf("failed to list %s records: %w", rtype, err)
	}

	exists := false
	for _, r := range records {
		if current, err := netip.ParseAddr(r.Content); err == nil && current.Unmap() == addr {
			exists = true
			continue
		}
		if err := n.api.DeleteDNSRecord(ctx, rc, r.ID); err != nil {
			return fmt.Errorf("failed to delete %s record %s: %w", rtype, r.Content, err)
		}
		n.logger.Debug("Deleted stale DNS record", zap.String("type", rtype), zap.String("content", r.Content))
	}
	if exists {
		n.logger.Debug("DNS record already up to date", zap.String("type", rtype))
		return nil
	}

	proxied := n.config.Proxied
	if _, err := n.api.CreateDNSRecord(ctx, rc, cloudflare.CreateDNSRecordParams{
		Type:    rtype,
		Name:    n.config.Record,
		Content: addr.String(),
		TTL:     n.config.TTL,
		Proxied: &proxied,
		Comment: n.config.Comment,
	}); err != nil {
		return fmt.Errorf("failed to create %s record: %w", rtype, err)
	}

	n.logger.Info("DNS record updated",
		zap.String("type", rtype),
		zap.String("address", addr.String()))
	return nil
}

// zone returns the configured zone ID or finds the longest zone name that
// is a suffix of the record, caching the result
func (n *CloudflareNotifier) zone(ctx context.Context) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.zoneID != "" {
		return n.zoneID, nil
	}

	zones, err := n.api.ListZones(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list zones: %w", err)
	}

	best := 0
	for _, z := range zones {
		name := strings.ToLower(z.Name)
		if (n.config.Record == name || strings.HasSuffix(n.config.Record, "."+name)) && len(name) > best {
			best, n.zoneID = len(name), z.ID
		}
	}
	if n.zoneID == "" {
		return "", fmt.Errorf("no zone matches %s", n.config.Record)
	}
	return n.zoneID, nil
}

func recordType(addr netip.Addr) string {
	if addr.Is4() {
		return "A"
	}
	return "AAAA"
}
