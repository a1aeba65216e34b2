package archiver

import (
	"sync"

	"pkg.mon.icu/wumpus/internal/storage/entity"
)

// snowflakeSet is a map-based set of unique IDs, safe for concurrent use.
type snowflakeSet struct {
	mu         sync.RWMutex
	backingMap map[entity.Snowflake]struct{}
}

// newSnowflakeSet creates a new snowflakeSet from the specified IDs.
func newSnowflakeSet(s ...entity.Snowflake) *snowflakeSet {
	set := &snowflakeSet{backingMap: make(map[entity.Snowflake]struct{}, len(s))}
	set.Add(s...)
	return set
}

// Contains checks if this set contains the specified ID.
func (s *snowflakeSet) Contains(id entity.Snowflake) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.backingMap[id]
	return exists
}

func (s *snowflakeSet) Add(ids ...entity.Snowflake) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.backingMap[id] = struct{}{}
	}
}

func (s *snowflakeSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.backingMap)
}

// Values return values contained by this set.
func (s *snowflakeSet) Values() []entity.Snowflake {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := make([]entity.Snowflake, 0, len(s.backingMap))
	for k := range s.backingMap {
		v = append(v, k)
	}
	return v
}
