package client

import (
	lru "github.com/hashicorp/golang-lru"
)

// skipCacheSize bounds how many recently-failed peer addresses the
// orchestrator remembers at once; large enough to skip a dead swarm's worth
// of bad peers without growing unbounded across a long-running download.
const skipCacheSize = 128

// skipCache remembers peer addresses that failed to connect or handshake
// recently, so a multi-peer run doesn't hot-loop a dead peer (Open Question
// (c)). Each command run queries the tracker once and builds a fresh cache;
// within a run, entries leave only by LRU eviction past skipCacheSize.
type skipCache struct {
	cache *lru.Cache
}

func newSkipCache() *skipCache {
	c, _ := lru.New(skipCacheSize) // size <= 0 is the only failure mode
	return &skipCache{cache: c}
}

func (s *skipCache) markFailed(addr string) {
	s.cache.Add(addr, struct{}{})
}

func (s *skipCache) shouldSkip(addr string) bool {
	return s.cache.Contains(addr)
}

func (s *skipCache) reset() {
	s.cache.Purge()
}
