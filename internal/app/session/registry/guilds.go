// Package registry provides the concurrent guild state registry.
package registry

import (
	"sync"
	"sync/atomic"

	"github.com/disgoorg/snowflake/v2"

	"github.com/osa030/guildbox/internal/app/playback"
)

// Factory creates the initial state for a guild.
type Factory func(guildID snowflake.ID) *playback.GuildState

// Guilds maps guild IDs to their music state.
// Lookups are lock-free; each guild state carries its own lock.
type Guilds struct {
	guilds  sync.Map // snowflake.ID -> *playback.GuildState
	count   atomic.Int64
	factory Factory
}

// NewGuilds creates an empty registry.
func NewGuilds(factory Factory) *Guilds {
	return &Guilds{factory: factory}
}

// GetOrCreate returns the guild's state, creating it on first use.
// Concurrent callers for the same guild always receive the same instance.
func (r *Guilds) GetOrCreate(guildID snowflake.ID) *playback.GuildState {
	if v, ok := r.guilds.Load(guildID); ok {
		return v.(*playback.GuildState)
	}

	v, loaded := r.guilds.LoadOrStore(guildID, r.factory(guildID))
	if !loaded {
		r.count.Add(1)
	}
	return v.(*playback.GuildState)
}

// Get returns the guild's state if it exists.
func (r *Guilds) Get(guildID snowflake.ID) (*playback.GuildState, bool) {
	v, ok := r.guilds.Load(guildID)
	if !ok {
		return nil, false
	}
	return v.(*playback.GuildState), true
}

// Range calls fn for each guild until fn returns false.
func (r *Guilds) Range(fn func(state *playback.GuildState) bool) {
	r.guilds.Range(func(_, v any) bool {
		return fn(v.(*playback.GuildState))
	})
}

// Len returns the number of guilds with state.
func (r *Guilds) Len() int {
	return int(r.count.Load())
}

// Snapshots returns a copy of every guild's state.
func (r *Guilds) Snapshots() []playback.Snapshot {
	snapshots := make([]playback.Snapshot, 0, r.Len())
	r.Range(func(state *playback.GuildState) bool {
		snapshots = append(snapshots, state.Snapshot())
		return true
	})
	return snapshots
}
