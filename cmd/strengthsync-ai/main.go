// StrengthSync AI governance gateway.
//
// It hosts the admission-controlled model gateway for StrengthSync's AI
// features, providing:
//   - Multi-tier request rate limiting per actor and group
//   - Daily token budget enforcement from a durable usage ledger
//   - Per-feature model configuration and cost accounting
//   - An operational HTTP surface for health, usage, and metrics
//
// Usage:
//
//	# Start with defaults (no config file needed)
//	strengthsync-ai run
//
//	# Start with a configuration file
//	strengthsync-ai run --config /etc/strengthsync/ai.yaml
//
//	# Show version information
//	strengthsync-ai version
package main

func main() {
	Execute()
}
