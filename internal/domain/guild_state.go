package domain

import (
	"sync"
	"time"
)

// UnsetBasePoints marca un rol sin umbral configurado: nunca se otorga
// automáticamente por puntos.
const UnsetBasePoints = -1

// InviteGain es el par (invite, puntos ganados) que produce CalcPoints.
type InviteGain struct {
	Invite Invite
	Gained int
}

// Runaway es un member que se fue del guild después de haber sido
// trackeado. Se retiene para no volver a contarlo si regresa.
type Runaway struct {
	Member Member
	LeftAt time.Time
}

// GuildState es el estado mutable de un guild: baseline de invites,
// libro de puntos, umbrales por rol, runaways y conteo de members.
//
// El mutex serializa la cadena diff → award → rebase de un mismo guild:
// dos joins seguidos no pueden observar el mismo baseline viejo. Los
// handlers toman Lock antes del fetch y lo sueltan después del rebase.
type GuildState struct {
	mu sync.Mutex

	id          string
	memberCount int
	invites     map[string]Invite
	points      map[string]int
	rolePoints  map[string]int
	runaway     map[string]Runaway
}

func NewGuildState(id string, memberCount int) *GuildState {
	return &GuildState{
		id:          id,
		memberCount: memberCount,
		invites:     map[string]Invite{},
		points:      map[string]int{},
		rolePoints:  map[string]int{},
		runaway:     map[string]Runaway{},
	}
}

// Lock serializa el procesamiento de eventos de este guild.
func (g *GuildState) Lock()   { g.mu.Lock() }
func (g *GuildState) Unlock() { g.mu.Unlock() }

func (g *GuildState) ID() string { return g.id }

// MemberCount sólo crece: trackea "alguna vez se unió", no presentes.
func (g *GuildState) MemberCount() int { return g.memberCount }

// CalcPoints compara la foto fresca contra el baseline guardado y
// devuelve cada invite que ganó usos. Un invite nuevo (sin baseline)
// cuenta todos sus usos como ganados. Debe correr ANTES de TrackInvites:
// primero diff, después award, rebase al final.
func (g *GuildState) CalcPoints(fresh []Invite) []InviteGain {
	var result []InviteGain
	for _, inv := range fresh {
		gained := inv.Uses
		if before, ok := g.invites[inv.Code]; ok {
			gained -= before.Uses
		}
		if gained > 0 {
			result = append(result, InviteGain{Invite: inv, Gained: gained})
		}
	}
	return result
}

// TrackInvites reemplaza el baseline completo (sin merge): los invites
// borrados desaparecen, los nuevos entran. Es el punto de corte para el
// próximo diff.
func (g *GuildState) TrackInvites(fresh []Invite) map[string]Invite {
	g.invites = make(map[string]Invite, len(fresh))
	for _, inv := range fresh {
		g.invites[inv.Code] = inv
	}
	return g.invites
}

// Invites devuelve una copia del baseline actual.
func (g *GuildState) Invites() []Invite {
	out := make([]Invite, 0, len(g.invites))
	for _, inv := range g.invites {
		out = append(out, inv)
	}
	return out
}

// AwardMember suma delta (puede ser negativo, ajuste de admin) a los
// puntos del member y devuelve el total nuevo. Único mutador de points.
func (g *GuildState) AwardMember(memberID string, delta int) int {
	current := g.points[memberID] + delta
	g.points[memberID] = current
	return current
}

// Points devuelve los puntos del member (0 si no está trackeado).
func (g *GuildState) Points(memberID string) int { return g.points[memberID] }

// InitPoints siembra a cada member que todavía no está en el libro con
// el umbral de su rol más alto (0 si el rol no tiene umbral). Es
// idempotente: los ya trackeados no se tocan. Se usa al arrancar para
// rellenar members que existían antes de que el bot los viera.
func (g *GuildState) InitPoints(members []Member, hierarchy []Role) {
	for _, m := range members {
		if _, ok := g.points[m.ID]; ok {
			continue
		}
		base := 0
		if top, ok := TopRole(m, hierarchy); ok {
			if p, ok := g.rolePoints[top.ID]; ok {
				base = p
			}
		}
		g.points[m.ID] = base
	}
}

// BasePoints devuelve el umbral del rol, o UnsetBasePoints si no tiene.
func (g *GuildState) BasePoints(roleID string) int {
	if p, ok := g.rolePoints[roleID]; ok {
		return p
	}
	return UnsetBasePoints
}

func (g *GuildState) SetBasePoints(roleID string, points int) int {
	g.rolePoints[roleID] = points
	return points
}

// ClearBasePoints saca el rol del libro de umbrales (rol borrado).
func (g *GuildState) ClearBasePoints(roleID string) {
	delete(g.rolePoints, roleID)
}

// MissingRoles devuelve cada rol con umbral configurado estrictamente
// mayor que current: lo que le falta al member para el próximo rango.
func (g *GuildState) MissingRoles(current int) map[string]int {
	out := map[string]int{}
	for roleID, base := range g.rolePoints {
		if base != UnsetBasePoints && base > current {
			out[roleID] = base
		}
	}
	return out
}

// TrackRunaway registra al member que se fue. No toca sus puntos ni
// decrementa memberCount.
func (g *GuildState) TrackRunaway(m Member, leftAt time.Time) {
	g.runaway[m.ID] = Runaway{Member: m, LeftAt: leftAt}
}

func (g *GuildState) IsRunaway(memberID string) bool {
	_, ok := g.runaway[memberID]
	return ok
}

// AddMember registra un join. Devuelve true (y suma al conteo, arranca
// en 0 puntos) salvo que el member sea un runaway conocido: un runaway
// que vuelve ya está contado y no se re-siembra.
func (g *GuildState) AddMember(m Member) bool {
	if g.IsRunaway(m.ID) {
		return false
	}
	g.memberCount++
	g.points[m.ID] = 0
	return true
}
