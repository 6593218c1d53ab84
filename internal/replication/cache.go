package replication

import "github.com/wal2http/wal2http/internal/protocol"

// RelationCache holds the schema announced for every relation OID the
// server has sent a Relation message for in the current session. Entries
// are replaced atomically on each new Relation message and are never
// removed (PostgreSQL documentation: relation IDs are valid "for the
// duration of the replication session unless a new relation message is
// received").
type RelationCache struct {
	relations map[uint32]*protocol.RelationInfo
}

// NewRelationCache returns an empty cache.
func NewRelationCache() *RelationCache {
	return &RelationCache{relations: make(map[uint32]*protocol.RelationInfo)}
}

// Put stores (or atomically replaces) the schema for a relation OID.
func (c *RelationCache) Put(info protocol.RelationInfo) {
	c.relations[info.OID] = &info
}

// Get returns the cached schema for a relation OID, if any.
func (c *RelationCache) Get(oid uint32) (*protocol.RelationInfo, bool) {
	info, ok := c.relations[oid]
	return info, ok
}

// MustGet returns the cached schema, or *protocol.UnknownRelation if the
// OID has never been announced — a fatal condition for the event.
func (c *RelationCache) MustGet(oid uint32) (*protocol.RelationInfo, error) {
	info, ok := c.relations[oid]
	if !ok {
		return nil, &protocol.UnknownRelation{OID: oid}
	}
	return info, nil
}
