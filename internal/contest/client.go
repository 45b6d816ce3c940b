package contest

import (
	"context"
	"net/http"
	"time"

	"github.com/PickFolio/pickfolio-go/internal/auth"
	"github.com/PickFolio/pickfolio-go/internal/domain"
)

// Client wraps the contest service's protected endpoints. All calls go
// through the authenticated client, which owns token attachment and the
// refresh-and-retry protocol.
type Client struct {
	api     *auth.Client
	baseURL string
}

func NewClient(api *auth.Client, baseURL string) *Client {
	return &Client{api: api, baseURL: baseURL}
}

// CreateContestRequest mirrors the create endpoint's payload.
type CreateContestRequest struct {
	Name            string    `json:"name"`
	IsPrivate       bool      `json:"isPrivate"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	VirtualBudget   float64   `json:"virtualBudget"`
	MaxParticipants int       `json:"maxParticipants"`
}

// TransactionRequest is one buy or sell order within a contest.
type TransactionRequest struct {
	StockSymbol     string                 `json:"stockSymbol"`
	TransactionType domain.TransactionType `json:"transactionType"`
	Quantity        int                    `json:"quantity"`
}

// Details fetches one contest's metadata.
func (c *Client) Details(ctx context.Context, contestID string) (domain.Contest, error) {
	var out domain.Contest
	err := c.api.Do(ctx, http.MethodGet, c.baseURL+"/details/"+contestID, nil, &out)
	return out, err
}

// Portfolio fetches the caller's own portfolio in a contest.
func (c *Client) Portfolio(ctx context.Context, contestID string) (domain.Portfolio, error) {
	var out domain.Portfolio
	err := c.api.Do(ctx, http.MethodGet, c.baseURL+"/"+contestID+"/portfolio", nil, &out)
	return out, err
}

// Leaderboard fetches the current ranked snapshot for a contest.
func (c *Client) Leaderboard(ctx context.Context, contestID string) ([]domain.LeaderboardEntry, error) {
	var out []domain.LeaderboardEntry
	err := c.api.Do(ctx, http.MethodGet, c.baseURL+"/"+contestID+"/leaderboard", nil, &out)
	return out, err
}

// MyContests lists contests the caller participates in.
func (c *Client) MyContests(ctx context.Context) ([]domain.Contest, error) {
	var out []domain.Contest
	err := c.api.Do(ctx, http.MethodGet, c.baseURL+"/my-contests", nil, &out)
	return out, err
}

// OpenPublicContests lists joinable public contests.
func (c *Client) OpenPublicContests(ctx context.Context) ([]domain.Contest, error) {
	var out []domain.Contest
	err := c.api.Do(ctx, http.MethodGet, c.baseURL+"/open-public-contests", nil, &out)
	return out, err
}

// Create creates a contest. For private contests the returned contest
// carries the invite code to share.
func (c *Client) Create(ctx context.Context, req CreateContestRequest) (domain.Contest, error) {
	var out domain.Contest
	err := c.api.Do(ctx, http.MethodPost, c.baseURL+"/create", req, &out)
	return out, err
}

// Join joins a public contest by id.
func (c *Client) Join(ctx context.Context, contestID string) error {
	payload := map[string]string{"contestId": contestID}
	return c.api.Do(ctx, http.MethodPost, c.baseURL+"/join", payload, nil)
}

// JoinByCode joins a private contest with its invite code.
func (c *Client) JoinByCode(ctx context.Context, inviteCode string) error {
	payload := map[string]string{"inviteCode": inviteCode}
	return c.api.Do(ctx, http.MethodPost, c.baseURL+"/join-by-code", payload, nil)
}

// SubmitTransaction places a buy or sell order.
func (c *Client) SubmitTransaction(ctx context.Context, contestID string, req TransactionRequest) error {
	return c.api.Do(ctx, http.MethodPost, c.baseURL+"/"+contestID+"/transactions", req, nil)
}
