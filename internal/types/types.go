package types

import (
	"net/http"
	"time"
)

// Account is one credential pair for the feed site. Read-only after load.
type Account struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is an authenticated feed session bound to one account. It is owned
// by the session pool and must not be reused across trading days.
type Session struct {
	Account       Account
	Client        *http.Client
	EstablishedAt time.Time
}

// AlertRecord is a single extracted feed item. Produced fresh on every
// extraction call and never mutated afterwards.
type AlertRecord struct {
	Title      string
	Price      string
	CreatedAt  time.Time
	ObservedAt time.Time
}

// SignalType classifies an alert title.
type SignalType string

const (
	SignalBuy  SignalType = "Buy"
	SignalSell SignalType = "Sell"
	SignalNone SignalType = "None"
)

// NoTicker is the sentinel ticker when the title carries no ticker token.
const NoTicker = "-"

// Signal is the normalized payload forwarded to the message bus.
type Signal struct {
	Name   string     `json:"name"`
	Type   SignalType `json:"type"`
	Ticker string     `json:"ticker"`
	Sender string     `json:"sender"`
}

// Phase is the current position within the trading-day schedule.
type Phase int

const (
	// PhaseClosed covers everything outside the login and open windows.
	PhaseClosed Phase = iota
	// PhasePreOpenLogin covers [preMarketLogin, marketOpen).
	PhasePreOpenLogin
	// PhaseOpen covers [marketOpen, marketClose].
	PhaseOpen
)

func (p Phase) String() string {
	switch p {
	case PhasePreOpenLogin:
		return "PRE_OPEN_LOGIN"
	case PhaseOpen:
		return "OPEN"
	default:
		return "CLOSED"
	}
}

// TradingSchedule holds one day's schedule in the reference timezone.
// Immutable once derived for that day.
type TradingSchedule struct {
	PreMarketLogin time.Time
	MarketOpen     time.Time
	MarketClose    time.Time
}
