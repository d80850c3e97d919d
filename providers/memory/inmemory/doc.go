// Package inmemory provides the process-local [memory.Store]: a registry of
// chat sessions keyed by container id. Nothing is persisted across restarts.
//
// By default the registry is unbounded. [WithMaxSessions] turns it into an
// LRU cache and [WithIdleTTL] expires sessions that have seen no activity
// for a while; both can be combined. Recency is tracked with
// hashicorp/golang-lru's simplelru. Sessions with a running turn
// ([memory.Session.BeginTurn]) are skipped by both policies.
package inmemory
