/*
Package core provides the framework-agnostic trust association logic that
can be used across different transport layers (HTTP, gRPC, etc.).

# Architecture

	┌─────────────────────────────────────────────┐
	│         Transport Adapters                  │
	│  (net/http, gin, echo, gRPC)                │
	└────────────────┬────────────────────────────┘
	                 │ Request{IsSecure, Header}
	                 ▼
	┌─────────────────────────────────────────────┐
	│          Core (THIS PACKAGE)                │
	│  • IsTarget: bearer shape predicate         │
	│  • EstablishTrust: Verdict mapping          │
	│  • Initialize: trust anchor lifecycle       │
	└───────┬─────────────────────────┬───────────┘
	        │                         │
	        ▼                         ▼
	┌──────────────┐          ┌──────────────────┐
	│  keystore    │          │  validator       │
	│  (anchor)    │          │  (JWS + claims)  │
	└──────────────┘          └──────────────────┘

# Lifecycle

A Core starts Uninitialized and intercepts nothing. Initialize loads the key
source and publishes an immutable trust.Anchor. A failed first Initialize
leaves the core Uninitialized, so IsTarget stays false and the host's other
authentication mechanisms handle every request. A failed re-initialization
keeps the previous anchor. Health reports the state and the last error.

# Verdicts

	NotIntercepted      Status() == 0
	Authenticated       Status() == 200, Identity != ""
	Rejected(kind)      Status() == 401, or 500 for validator.ConsumerError

# Context Helpers

	ctx = core.WithVerdict(ctx, verdict)
	identity, err := core.GetIdentity(ctx)
	claims, err := core.GetClaims[*validator.Claims](ctx)
*/
package core
