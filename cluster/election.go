package cluster

// ElectLeaders recomputes leadership and offline state for every partition
// from the current broker Up flags, in place. It is invoked after every
// broker toggle and after every topology change, and it is idempotent:
// running it twice with unchanged broker state changes nothing.
//
// Per partition:
//  1. A still-up current leader is kept; leadership never moves while the
//     leader's broker stays up.
//  2. Otherwise the first up replica in preference order takes over.
//  3. With no up replica at all the partition goes offline (leader NoLeader)
//     and stays there until some replica's broker returns, at which point the
//     next election promotes the first alive replica, not necessarily the
//     original preferred one.
func ElectLeaders(c *Cluster) {
	up := make(map[int32]bool, len(c.Brokers))
	for _, b := range c.Brokers {
		up[b.ID] = b.Up
	}

	for ti := range c.Topics {
		t := &c.Topics[ti]
		for pi := range t.Partitions {
			electPartition(&t.Partitions[pi], up)
		}
	}
}

func electPartition(p *Partition, up map[int32]bool) {
	if p.Leader != NoLeader && up[p.Leader] {
		p.Offline = false
		return
	}

	p.Leader = NoLeader
	for _, id := range p.Replicas {
		if up[id] {
			p.Leader = id
			break
		}
	}
	p.Offline = p.Leader == NoLeader
}
