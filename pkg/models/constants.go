package models

import "time"

//-- Section --

const (
	// FilePermSecure enforces strict owner-only access for files that may
	// hold signing material or audit history.
	FilePermSecure = 0600
	// caps the size of any external JSON payload loaded into memory
	// (reputation lists, pending transaction pages, LLM responses).
	MaxAPIResponseSize = 5 * 1024 * 1024 // 5 MB

	// limits the number of attempts to reach an API before conceding failure.
	MaxHTTPRetries = 3
	// provides the starting point for exponential backoff calculations.
	BaseRetryDelay = 500 * time.Millisecond
	// prevents backoff times from growing indefinitely and stalling the signing pipeline.
	MaxRetryDelay = 5 * time.Second
	// sets a hard deadline for any single outbound network request.
	HTTPClientTimeout = 30 * time.Second
	// acts as a circuit breaker for one full batch run so the agent exits
	// within a predictable window even when collaborators hang.
	GlobalBatchTimeout = 300 * time.Second
	// bounds the advisory narrative call; the verdict is already final when
	// this fires, so expiry only costs us the prose.
	NarrativeTimeout = 60 * time.Second

	// interval between reputation list refreshes.
	DefaultRefreshInterval = 6 * time.Hour

	// multimodal reasoning model used for the advisory narrative.
	ModelGeminiPro = "gemini-3-pro-preview"
	// high speed, low latency narrative generation.
	ModelGeminiFlash = "gemini-2.5-flash"
	// legacy OpenAI flagship for deployments without a Gemini key.
	ModelGPT4o = "gpt-4o"

	// portable, human readable storage for verdict history.
	BackendJSON = "json"
	// LSM tree based storage for high volume signing history.
	BackendPebbleDB = "pebbledb"
)

// NarrativeFallback is returned when the narrative provider is unreachable.
// The verdict itself is never affected by this substitution.
const NarrativeFallback = "AI analysis unavailable. The decision above was made solely from the deterministic security checks."

// Default reputation list endpoints (MyEtherWallet curated address lists).
const (
	DefaultDenylistURL  = "https://raw.githubusercontent.com/MyEtherWallet/ethereum-lists/master/src/addresses/addresses-darklist.json"
	DefaultAllowlistURL = "https://raw.githubusercontent.com/MyEtherWallet/ethereum-lists/master/src/addresses/addresses-lightlist.json"
)
