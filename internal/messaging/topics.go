package messaging

// Topic constants for IronShield client events
const (
	TopicSolves = "ironshield.solves" // solve telemetry, protobuf Struct keyed by website
	TopicTokens = "ironshield.tokens" // granted tokens, JSON keyed by endpoint
)
