package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"confluence-backend/internal/domain"
)

// ZoneNotifier pushes a message to every registered device when an analysis
// contains a zone at or above the configured strength. Each symbol is
// notified at most once per cooldown.
type ZoneNotifier struct {
	notifier    domain.Notifier
	devices     domain.DeviceRepository
	minStrength domain.ZoneStrength
	cooldown    time.Duration
	logger      *logrus.Entry

	notified map[string]time.Time
	now      func() time.Time
	mu       sync.Mutex
}

func NewZoneNotifier(notifier domain.Notifier, devices domain.DeviceRepository, minStrength domain.ZoneStrength, cooldown time.Duration, logger *logrus.Logger) *ZoneNotifier {
	return &ZoneNotifier{
		notifier:    notifier,
		devices:     devices,
		minStrength: minStrength,
		cooldown:    cooldown,
		logger:      logger.WithField("component", "notifier"),
		notified:    make(map[string]time.Time),
		now:         time.Now,
	}
}

// Notify sends at most one message for res and reports whether it did.
func (n *ZoneNotifier) Notify(ctx context.Context, res domain.AnalysisResult) bool {
	if n.notifier == nil || !n.notifier.IsEnabled() {
		return false
	}

	zone, ok := n.strongestQualifying(res.ConfluenceZones)
	if !ok {
		return false
	}

	tokens := n.devices.Tokens()
	if len(tokens) == 0 {
		return false
	}

	now := n.now()
	n.mu.Lock()
	last, seen := n.notified[res.Symbol]
	if seen && now.Sub(last) < n.cooldown {
		n.mu.Unlock()
		return false
	}
	// Claim the slot before sending so concurrent scans cannot double-notify.
	n.notified[res.Symbol] = now
	n.cleanup(now)
	n.mu.Unlock()

	title, body, data := zoneMessage(res, zone)
	log := n.logger.WithFields(logrus.Fields{"symbol": res.Symbol, "devices": len(tokens)})
	if err := n.notifier.SendMulticast(ctx, tokens, title, body, data); err != nil {
		log.WithError(err).Error("Error sending notification")
		n.mu.Lock()
		if n.notified[res.Symbol].Equal(now) {
			if seen {
				n.notified[res.Symbol] = last
			} else {
				delete(n.notified, res.Symbol)
			}
		}
		n.mu.Unlock()
		return false
	}
	log.Info("Sent zone notification")
	return true
}

// strongestQualifying relies on zones being sorted by descending score.
func (n *ZoneNotifier) strongestQualifying(zones []domain.ConfluenceZone) (domain.ConfluenceZone, bool) {
	for _, z := range zones {
		if z.Strength.AtLeast(n.minStrength) {
			return z, true
		}
	}
	return domain.ConfluenceZone{}, false
}

// cleanup drops entries older than twice the cooldown. Caller holds mu.
func (n *ZoneNotifier) cleanup(now time.Time) {
	for symbol, ts := range n.notified {
		if now.Sub(ts) > 2*n.cooldown {
			delete(n.notified, symbol)
		}
	}
}

func zoneMessage(res domain.AnalysisResult, zone domain.ConfluenceZone) (string, string, map[string]string) {
	display := strings.TrimSuffix(res.Symbol, "USDT")
	title := fmt.Sprintf("%s %s confluence zone", display, strings.ReplaceAll(string(zone.Strength), "_", " "))
	body := fmt.Sprintf("Zone %.5f - %.5f | Score: %.2f | %s | Price: $%.5f",
		zone.LowerPrice, zone.UpperPrice, zone.ConfluenceScore, strings.Join(zone.Timeframes, "/"), res.Price)
	data := map[string]string{
		"symbol":   res.Symbol,
		"type":     "CONFLUENCE_ZONE",
		"strength": string(zone.Strength),
		"score":    fmt.Sprintf("%.4f", zone.ConfluenceScore),
		"center":   fmt.Sprintf("%.8f", zone.CenterPrice),
		"price":    fmt.Sprintf("%.8f", res.Price),
	}
	return title, body, data
}
