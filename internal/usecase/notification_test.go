package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confluence-backend/internal/domain"
	"confluence-backend/internal/repository"
)

func zoneResult(symbol string, strengths ...domain.ZoneStrength) domain.AnalysisResult {
	res := domain.AnalysisResult{Symbol: symbol, Price: 100}
	for _, s := range strengths {
		res.ConfluenceZones = append(res.ConfluenceZones, domain.ConfluenceZone{
			CenterPrice: 100, LowerPrice: 99, UpperPrice: 101,
			Timeframes: []string{"1h", "4h"}, Strength: s, ConfluenceScore: 0.8,
		})
	}
	return res
}

func newTestNotifier(fn *fakeNotifier, tokens ...string) (*ZoneNotifier, *time.Time) {
	devices := repository.NewTokenRepository()
	for _, tok := range tokens {
		devices.Register(tok, "android", testStart)
	}
	n := NewZoneNotifier(fn, devices, domain.ZoneVeryStrong, 15*time.Minute, quietLogger())
	now := testStart
	n.now = func() time.Time { return now }
	return n, &now
}

func TestZoneNotifier_SendsForQualifyingZone(t *testing.T) {
	fn := &fakeNotifier{enabled: true}
	n, _ := newTestNotifier(fn, "tok-a", "tok-b")

	assert.True(t, n.Notify(context.Background(), zoneResult("BTCUSDT", domain.ZoneVeryStrong)))
	require.Equal(t, 1, fn.count())
	assert.Equal(t, "BTC VERY STRONG confluence zone", fn.sent[0])
	assert.Equal(t, []string{"tok-a", "tok-b"}, fn.tokens[0])
}

func TestZoneNotifier_SkipsWeakZones(t *testing.T) {
	fn := &fakeNotifier{enabled: true}
	n, _ := newTestNotifier(fn, "tok")

	assert.False(t, n.Notify(context.Background(), zoneResult("BTCUSDT", domain.ZoneStrong, domain.ZoneSignificant)))
	assert.False(t, n.Notify(context.Background(), zoneResult("BTCUSDT")))
	assert.Equal(t, 0, fn.count())
}

func TestZoneNotifier_Cooldown(t *testing.T) {
	fn := &fakeNotifier{enabled: true}
	n, now := newTestNotifier(fn, "tok")
	ctx := context.Background()
	res := zoneResult("BTCUSDT", domain.ZoneVeryStrong)

	assert.True(t, n.Notify(ctx, res))
	*now = now.Add(5 * time.Minute)
	assert.False(t, n.Notify(ctx, res))
	assert.True(t, n.Notify(ctx, zoneResult("ETHUSDT", domain.ZoneVeryStrong)), "cooldown is per symbol")

	*now = now.Add(11 * time.Minute)
	assert.True(t, n.Notify(ctx, res))
	assert.Equal(t, 3, fn.count())
}

func TestZoneNotifier_FailureReleasesCooldown(t *testing.T) {
	fn := &fakeNotifier{enabled: true, err: errors.New("fcm down")}
	n, _ := newTestNotifier(fn, "tok")
	ctx := context.Background()
	res := zoneResult("BTCUSDT", domain.ZoneVeryStrong)

	assert.False(t, n.Notify(ctx, res))
	fn.err = nil
	assert.True(t, n.Notify(ctx, res))
}

func TestZoneNotifier_DisabledOrNoDevices(t *testing.T) {
	res := zoneResult("BTCUSDT", domain.ZoneVeryStrong)

	disabled, _ := newTestNotifier(&fakeNotifier{enabled: false}, "tok")
	assert.False(t, disabled.Notify(context.Background(), res))

	noDevices, _ := newTestNotifier(&fakeNotifier{enabled: true})
	assert.False(t, noDevices.Notify(context.Background(), res))
}
