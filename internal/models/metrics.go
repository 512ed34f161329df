package models

// RetargetMetrics counts re-target mails sent since process start.
type RetargetMetrics struct {
	SubscriberMailsSent int64 `json:"subscriberRetargetMailsSent"`
	ProviderMailsSent   int64 `json:"providerRetargetMailsSent"`
}

// ChallengeMetrics counts signature checks by outcome.
type ChallengeMetrics struct {
	ValidSignatures   int64 `json:"validSignatures"`
	InvalidSignatures int64 `json:"invalidSignatures"`
	NoSignature       int64 `json:"noSignature"`
}

// GatewayMetrics tracks payment-processor interactions.
type GatewayMetrics struct {
	ChargeAttempts  int64  `json:"chargeAttempts"`
	ChargeSuccesses int64  `json:"chargeSuccesses"`
	LastError       string `json:"lastError,omitempty"`
	LastErrorTime   string `json:"lastErrorTime,omitempty"`
}

// CacheMetrics tracks the tally cache gate.
type CacheMetrics struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Saves  int64 `json:"saves"`
}
