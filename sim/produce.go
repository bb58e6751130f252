package sim

// Produce appends one record to a topic through the key router and reports
// the partition it landed on and that partition's new end offset. Keyed
// records are routed deterministically by the key hash, unkeyed records land
// on a uniformly random partition. Producing to an unknown topic changes
// nothing and returns ok false.
func (s *Service) Produce(topicName, key string) (partition int32, endOffset int64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	partition, endOffset, ok = s.router.Route(s.cluster, topicName, key)
	if ok {
		s.storage.recordProduce(topicName, partition, endOffset)
	}
	s.storage.markCommandApplied()

	return partition, endOffset, ok
}
