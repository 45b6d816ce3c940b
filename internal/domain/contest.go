package domain

import "time"

// ContestStatus mirrors the contest service's lifecycle states.
type ContestStatus string

const (
	ContestUpcoming ContestStatus = "UPCOMING"
	ContestLive     ContestStatus = "LIVE"
	ContestEnded    ContestStatus = "ENDED"
)

type Contest struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Status          ContestStatus `json:"status"`
	IsPrivate       bool          `json:"isPrivate"`
	InviteCode      string        `json:"inviteCode,omitempty"`
	StartTime       time.Time     `json:"startTime"`
	EndTime         time.Time     `json:"endTime"`
	VirtualBudget   float64       `json:"virtualBudget"`
	MaxParticipants int           `json:"maxParticipants"`
}

type Holding struct {
	ID              string  `json:"id"`
	StockSymbol     string  `json:"stockSymbol"`
	Quantity        int     `json:"quantity"`
	AverageBuyPrice float64 `json:"averageBuyPrice"`
	CurrentValue    float64 `json:"currentValue"`
	Profit          float64 `json:"profit"`
}

// Portfolio is the caller's own standing in one contest, including cash
// and per-stock holdings.
type Portfolio struct {
	ParticipantID       string    `json:"participantId"`
	TotalPortfolioValue float64   `json:"totalPortfolioValue"`
	TotalHoldingsValue  float64   `json:"totalHoldingsValue"`
	CashBalance         float64   `json:"cashBalance"`
	TotalProfitLoss     float64   `json:"totalProfitLoss"`
	Holdings            []Holding `json:"holdings"`
}

// TransactionType is the direction of a trade.
type TransactionType string

const (
	TransactionBuy  TransactionType = "BUY"
	TransactionSell TransactionType = "SELL"
)
