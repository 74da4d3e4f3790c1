// Package ratelimit provides net/http adapters for fixed-window rate limiting.
//
// Layers:
//
//   - domain: contracts and types (no net/http dependency)
//   - application: use cases (decide, peek, reset) without net/http
//   - infra: concrete stores (memory, Redis) and stats recorders
//   - ratelimit (this package): HTTP middleware, key extraction and the
//     translation of decisions into status codes and headers
//
// Request flow:
//
//  1. Extract the client key (header/XFF/remote address)
//  2. Ask the application layer for a decision (this counts the hit)
//  3. Set the RateLimit-* headers
//  4. If blocked, answer 429 with a JSON {"error": message} body
//  5. Otherwise call the next handler
//
// Several limiters stack: each one is an independent window, and a request
// must pass all of them.
package ratelimit
