// Community moderation engine for ingested content events.
//
// This package (`github.com/haven-social/haven/commod`) evaluates content
// events (messages, posts, profiles) from communities against configurable
// moderation rules, queues matches for human or automated disposition, and
// maintains a rolling health score per community from aggregate counters.
// Rule matching spans direct text conditions (keyword lists, regex
// patterns) and score thresholds backed by an external content-analysis
// oracle. Side effects of dispositions (delete, hide, warn) are delegated
// to a content store collaborator, and every disposition and side effect
// lands in an append-only audit log.
//
// See `cmd/lifeguard` for a daemon built on this package.
package commod
