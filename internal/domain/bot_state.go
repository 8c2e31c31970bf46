package domain

import "sync"

// GuildSnapshot es la forma serializable de un GuildState: lo que el
// backend de persistencia guarda y restaura al completo.
type GuildSnapshot struct {
	ID          string
	MemberCount int
	Invites     []Invite
	Points      map[string]int
	RolePoints  map[string]int
	Runaways    []Runaway
}

// BotState es el registro guild id → GuildState. Vive lo que vive el
// proceso; se persiste entero al apagar y se restaura al arrancar.
type BotState struct {
	mu     sync.RWMutex
	guilds map[string]*GuildState
}

func NewBotState() *BotState {
	return &BotState{guilds: map[string]*GuildState{}}
}

// AddGuild registra un guild nuevo. Si ya existe (restaurado de disco o
// GuildCreate repetido) devuelve el estado vivo: lo restaurado gana.
func (b *BotState) AddGuild(id string, memberCount int) *GuildState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if st, ok := b.guilds[id]; ok {
		return st
	}
	st := NewGuildState(id, memberCount)
	b.guilds[id] = st
	return st
}

// RemoveGuild descarta el estado del guild (el bot fue echado / se fue).
func (b *BotState) RemoveGuild(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.guilds, id)
}

func (b *BotState) Guild(id string) (*GuildState, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	st, ok := b.guilds[id]
	return st, ok
}

func (b *BotState) GuildIDs() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]string, 0, len(b.guilds))
	for id := range b.guilds {
		ids = append(ids, id)
	}
	return ids
}

// Snapshot congela todos los guilds para persistir.
func (b *BotState) Snapshot() []GuildSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	snaps := make([]GuildSnapshot, 0, len(b.guilds))
	for _, st := range b.guilds {
		snaps = append(snaps, st.Snapshot())
	}
	return snaps
}

// Restore repuebla el registro desde snapshots persistidos.
func (b *BotState) Restore(snaps []GuildSnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, snap := range snaps {
		b.guilds[snap.ID] = RestoreGuildState(snap)
	}
}

// Snapshot copia el estado del guild a su forma serializable.
func (g *GuildState) Snapshot() GuildSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	snap := GuildSnapshot{
		ID:          g.id,
		MemberCount: g.memberCount,
		Invites:     make([]Invite, 0, len(g.invites)),
		Points:      make(map[string]int, len(g.points)),
		RolePoints:  make(map[string]int, len(g.rolePoints)),
		Runaways:    make([]Runaway, 0, len(g.runaway)),
	}
	for _, inv := range g.invites {
		snap.Invites = append(snap.Invites, inv)
	}
	for id, p := range g.points {
		snap.Points[id] = p
	}
	for id, p := range g.rolePoints {
		snap.RolePoints[id] = p
	}
	for _, r := range g.runaway {
		snap.Runaways = append(snap.Runaways, r)
	}
	return snap
}

// RestoreGuildState reconstruye un GuildState desde su snapshot.
func RestoreGuildState(snap GuildSnapshot) *GuildState {
	st := NewGuildState(snap.ID, snap.MemberCount)
	for _, inv := range snap.Invites {
		st.invites[inv.Code] = inv
	}
	for id, p := range snap.Points {
		st.points[id] = p
	}
	for id, p := range snap.RolePoints {
		st.rolePoints[id] = p
	}
	for _, r := range snap.Runaways {
		st.runaway[r.Member.ID] = r
	}
	return st
}
