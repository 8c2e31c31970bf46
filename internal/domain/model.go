package domain

import (
	"sort"
	"time"
)

// Invite es la foto inmutable de un invite link en un momento dado.
// Nunca se muta: el próximo fetch trae una foto nueva que la reemplaza.
type Invite struct {
	Code        string
	GuildID     string
	InviterID   string
	InviterName string
	Uses        int
	MaxUses     int // 0 = sin límite
	MaxAge      int // segundos, 0 = no expira
	CreatedAt   time.Time
}

func (i Invite) URL() string { return "https://discord.gg/" + i.Code }

// ExpiresAt devuelve cuándo vence el invite (ok=false si no expira).
func (i Invite) ExpiresAt() (time.Time, bool) {
	if i.MaxAge <= 0 {
		return time.Time{}, false
	}
	return i.CreatedAt.Add(time.Duration(i.MaxAge) * time.Second), true
}

// Role con su posición en la jerarquía: 0 = máxima autoridad.
type Role struct {
	ID       string
	Name     string
	Position int
}

type Member struct {
	ID      string
	Name    string
	RoleIDs []string
}

// HasRole reporta si el member tiene el rol.
func (m Member) HasRole(roleID string) bool {
	for _, id := range m.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// SortHierarchy ordena los roles por autoridad (posición 0 primero).
func SortHierarchy(roles []Role) []Role {
	out := make([]Role, len(roles))
	copy(out, roles)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// TopRole devuelve el rol de mayor autoridad que tiene el member dentro
// de la jerarquía dada. ok=false si no tiene ninguno.
func TopRole(m Member, hierarchy []Role) (Role, bool) {
	for _, r := range SortHierarchy(hierarchy) {
		if m.HasRole(r.ID) {
			return r, true
		}
	}
	return Role{}, false
}
