package sim

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cloudhut/ksim/group"
)

// AddGroup creates a new consumer group with a generated group-N identifier
// and returns it. The group starts empty, with no members and no offsets.
func (s *Service) AddGroup() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.addGroupLocked("")
	s.storage.markCommandApplied()

	s.logger.Info("added consumer group", zap.String("group_id", g.ID))

	return g.ID
}

// RemoveGroup deletes a consumer group and everything it tracks. Unknown
// group IDs change nothing.
func (s *Service) RemoveGroup(groupID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]*group.ConsumerGroup, 0, len(s.groups))
	for _, g := range s.groups {
		if g.ID != groupID {
			kept = append(kept, g)
		}
	}
	removed := len(kept) < len(s.groups)
	s.groups = kept
	s.storage.markCommandApplied()

	if removed {
		s.logger.Info("removed consumer group", zap.String("group_id", groupID))
	}
}

// AddConsumer adds one member to a group and rebalances it. The new member's
// ID is returned; ok is false when the group does not exist.
func (s *Service) AddConsumer(groupID string) (memberID string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.findGroupLocked(groupID)
	if !ok {
		return "", false
	}

	member := g.AddMember()
	g.Rebalance(s.cluster.Topics)
	s.storage.markCommandApplied()

	s.logger.Debug("added consumer",
		zap.String("group_id", groupID),
		zap.String("member_id", member.ID))

	return member.ID, true
}

// RemoveConsumer removes the most recently added member from a group and
// rebalances it. Removing the last member leaves the group with no
// assignments but keeps its committed offsets. It reports whether a member
// was removed.
func (s *Service) RemoveConsumer(groupID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.findGroupLocked(groupID)
	if !ok {
		return false
	}

	member, removed := g.RemoveMember()
	if removed {
		g.Rebalance(s.cluster.Topics)
		s.logger.Debug("removed consumer",
			zap.String("group_id", groupID),
			zap.String("member_id", member.ID))
	}
	s.storage.markCommandApplied()

	return removed
}

// ConsumeStep advances every partition assigned to the group by at most one
// record and reports how many offsets advanced. Partitions already at their
// end offset stay put, and an unknown group changes nothing.
func (s *Service) ConsumeStep(groupID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.findGroupLocked(groupID)
	if !ok {
		return 0
	}

	commits := g.ConsumeStep(s.cluster)
	for _, c := range commits {
		s.storage.recordOffsetCommit(groupID, c)
	}
	s.storage.markCommandApplied()

	return len(commits)
}

// ResetOffsets clears all committed offsets of a group, as if it had never
// consumed. Unknown groups change nothing.
func (s *Service) ResetOffsets(groupID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.findGroupLocked(groupID)
	if !ok {
		return
	}

	g.ResetOffsets()
	s.storage.markCommandApplied()

	s.logger.Info("reset group offsets", zap.String("group_id", groupID))
}

// addGroupLocked creates a group and appends it to the engine. An empty ID is
// replaced with the next free group-N identifier. Callers must hold the
// engine lock.
func (s *Service) addGroupLocked(id string) *group.ConsumerGroup {
	if id == "" {
		for {
			s.groupSeq++
			id = fmt.Sprintf("group-%d", s.groupSeq)
			if _, taken := s.findGroupLocked(id); !taken {
				break
			}
		}
	}

	g := group.New(id)
	s.groups = append(s.groups, g)
	return g
}
