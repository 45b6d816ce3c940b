package domain

// CredentialPair is the access/refresh token pair issued by the identity
// service. The pair is replaced wholesale on every refresh; the refresh
// token rotates along with the access token.
type CredentialPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// LeaderboardEntry is one participant's standing within a contest.
type LeaderboardEntry struct {
	ParticipantID       string  `json:"participantId"`
	Username            string  `json:"username,omitempty"`
	TotalPortfolioValue float64 `json:"totalPortfolioValue"`
}

// ScoreUpdateEvent is one inbound realtime message on a contest topic.
// Events arrive in no guaranteed order and may repeat; each carries the
// participant's full portfolio value, not a delta.
type ScoreUpdateEvent struct {
	ParticipantID       string  `json:"participantId"`
	TotalPortfolioValue float64 `json:"totalPortfolioValue"`
	Username            string  `json:"username,omitempty"`
}
