// Package infra holds the concrete implementations of the domain contracts.
//
// Examples:
//   - MemoryStore: fixed-window counters per key in process memory
//   - RedisStore: fixed-window counters shared through Redis (Lua INCR + PEXPIRE)
//   - MemoryStatsStore / RedisStatsStore: allow/deny counters
package infra
