// Package ai contains the shared identifiers and admission types used by the
// AI usage governance subsystem.
//
// Every generation request is attributed to an actor (the authenticated
// individual) and the group that owns them (the team or organization whose
// shared budgets the actor draws from). Admission decisions, rate limiting,
// budget governance and usage accounting all key off these two identifiers.
//
// The sub-packages compose as follows, leaves first:
//
//   - window:    fixed-window counters (in-memory and Redis backed)
//   - ratelimit: multi-tier request limiter over the counter store
//   - budget:    daily token budgets recomputed from the usage ledger
//   - gate:      the combined admission check
//   - features:  feature-to-model configuration and the price table
//   - ledger:    the durable, append-only usage ledger
//   - provider:  the model provider abstraction and HTTP adapter
//   - schema:    structured output validation
//   - chat:      conversation history for multi-turn sessions
//   - gateway:   the single choke point every model call flows through
package ai
