// Package application holds the rate limit use cases.
//
// It depends only on the domain package and does not know net/http.
// E.g. Service.Decide(ctx, identifier) returns a Decision (allow/deny,
// remaining quota, retry-after).
package application
