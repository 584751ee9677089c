// Package usage meters qualification conversations against the
// business's subscription tier. A conversation counts when its first
// outbound text is durably claimed, and the billing month is the
// calendar month in the billing timezone, converted to a UTC window.
package usage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"callbackcloser/internal/business"
)

const DefaultTimezone = "America/New_York"

type Tier string

const (
	TierFree    Tier = "free"
	TierStarter Tier = "starter"
	TierPro     Tier = "pro"
)

var conversationLimits = map[Tier]int{
	TierFree:    0,
	TierStarter: 200,
	TierPro:     1000,
}

// LimitForTier returns the monthly conversation allowance. Zero means
// the tier cannot start conversations at all.
func LimitForTier(t Tier) int {
	return conversationLimits[t]
}

// TierPrices maps subscription price IDs onto tiers.
type TierPrices struct {
	StarterPriceID string
	ProPriceID     string
}

// ResolveTier maps a business's subscription onto a usage tier. Any
// inactive subscription is free regardless of price, and an active
// subscription with an unrecognized price is also free.
func ResolveTier(b business.Business, prices TierPrices) Tier {
	if !b.SubscriptionIsActive() {
		return TierFree
	}
	priceID := strings.TrimSpace(b.StripePriceID)
	if priceID == "" {
		return TierFree
	}
	if pro := strings.TrimSpace(prices.ProPriceID); pro != "" && priceID == pro {
		return TierPro
	}
	if starter := strings.TrimSpace(prices.StarterPriceID); starter != "" && priceID == starter {
		return TierStarter
	}
	return TierFree
}

// MonthWindow is the half-open UTC interval [Start, End) covering the
// current calendar month in the billing timezone.
type MonthWindow struct {
	Start    time.Time
	End      time.Time
	Timezone string
}

// CurrentMonthWindow computes the billing month containing now.
// DST shifts fall out of time.Date in the loaded location: a month that
// crosses a transition has a start and end at different UTC offsets.
func CurrentMonthWindow(now time.Time, timezone string) (MonthWindow, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return MonthWindow{}, fmt.Errorf("load billing timezone %q: %w", timezone, err)
	}

	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 1, 0)
	return MonthWindow{
		Start:    start.UTC(),
		End:      end.UTC(),
		Timezone: timezone,
	}, nil
}

// ConversationUsage is a point-in-time snapshot of the month's meter.
type ConversationUsage struct {
	Tier        Tier      `json:"tier"`
	Used        int       `json:"used"`
	Limit       int       `json:"limit"`
	Remaining   int       `json:"remaining"`
	PeriodStart time.Time `json:"period_start_utc"`
	PeriodEnd   time.Time `json:"period_end_utc"`
	Timezone    string    `json:"timezone"`
}

// LimitReached reports whether a new conversation may not start.
// A zero limit is always exhausted.
func (u ConversationUsage) LimitReached() bool {
	if u.Limit <= 0 {
		return true
	}
	return u.Used >= u.Limit
}

// Describe renders the meter for log lines and owner notifications.
func (u ConversationUsage) Describe() string {
	return fmt.Sprintf("%s %d/%d used (%d remaining)", u.Tier, u.Used, u.Limit, u.Remaining)
}

// ConversationCounter counts conversations started inside a window.
// ledger.Repository satisfies this.
type ConversationCounter interface {
	CountLeadsStartedBetween(ctx context.Context, businessID string, from, to time.Time) (int, error)
}

// Service computes conversation usage for a business.
type Service struct {
	counter  ConversationCounter
	prices   TierPrices
	timezone string
	clock    func() time.Time
}

func NewService(counter ConversationCounter, prices TierPrices, timezone string) *Service {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	return &Service{
		counter:  counter,
		prices:   prices,
		timezone: timezone,
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// ForBusiness resolves the tier, counts this month's started
// conversations, and returns the assembled meter.
func (s *Service) ForBusiness(ctx context.Context, b business.Business) (ConversationUsage, error) {
	window, err := CurrentMonthWindow(s.clock(), s.timezone)
	if err != nil {
		return ConversationUsage{}, err
	}
	used, err := s.counter.CountLeadsStartedBetween(ctx, b.ID, window.Start, window.End)
	if err != nil {
		return ConversationUsage{}, fmt.Errorf("count started conversations: %w", err)
	}

	tier := ResolveTier(b, s.prices)
	limit := LimitForTier(tier)
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return ConversationUsage{
		Tier:        tier,
		Used:        used,
		Limit:       limit,
		Remaining:   remaining,
		PeriodStart: window.Start,
		PeriodEnd:   window.End,
		Timezone:    window.Timezone,
	}, nil
}
