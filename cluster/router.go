package cluster

import (
	"math/rand"
	"time"
)

// HashKey computes the routing hash of a record key: the classic polynomial
// rolling hash h = h*31 + c over all characters, in wrapping 32-bit signed
// arithmetic. The 32-bit wraparound is part of the contract; callers that
// compare routing decisions against recorded traces depend on it.
func HashKey(key string) int32 {
	var h int32
	for _, c := range key {
		h = h*31 + int32(c)
	}
	return h
}

// PartitionForKey maps a non-empty key onto one of partitionCount partitions:
// absolute hash value modulo partition count. The same key always lands on
// the same partition for a fixed partition count.
func PartitionForKey(key string, partitionCount int) int32 {
	// Take the absolute value in 64-bit space. Negating math.MinInt32 in
	// int32 arithmetic would wrap back to a negative number.
	v := int64(HashKey(key))
	if v < 0 {
		v = -v
	}
	return int32(v % int64(partitionCount))
}

// Router maps produce requests onto partitions and advances the chosen
// partition's log. Keyed records route deterministically via PartitionForKey;
// unkeyed records are spread uniformly using the injected randomness source,
// so a seeded source yields a reproducible sequence of picks.
type Router struct {
	rng *rand.Rand
}

// NewRouter returns a Router drawing unkeyed picks from rng. A nil rng is
// replaced with a time-seeded source.
func NewRouter(rng *rand.Rand) *Router {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Router{rng: rng}
}

// Route selects a partition of the named topic for a record with the given
// key and appends one record to it, returning the partition ID and the new
// end offset. An unknown topic is a silent no-op: ok is false and no state
// changes. Leadership is not consulted; an offline partition still accepts
// the simulated append.
func (r *Router) Route(c *Cluster, topicName, key string) (partition int32, endOffset int64, ok bool) {
	t, ok := c.Topic(topicName)
	if !ok {
		return 0, 0, false
	}

	var idx int32
	if key == "" {
		idx = int32(r.rng.Intn(len(t.Partitions)))
	} else {
		idx = PartitionForKey(key, len(t.Partitions))
	}

	p := &t.Partitions[idx]
	p.EndOffset++
	return idx, p.EndOffset, true
}
