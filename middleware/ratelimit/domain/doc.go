// Package domain defines the contracts and types of the rate limit domain.
//
// It depends neither on net/http nor on concrete stores, so the rules can be
// unit tested in isolation and backed by memory or Redis interchangeably.
package domain
