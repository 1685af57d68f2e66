package config

import (
	"encoding/json"
	"hash/fnv"
)

// contentHash fingerprints a parsed config so redundant file events can
// be skipped. Zero means "no usable hash" and never matches.
func contentHash(cfg *Config) uint64 {
	if cfg == nil {
		return 0
	}
	b, err := json.Marshal(cfg)
	if err != nil || len(b) == 0 {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}
