package service

import (
	"context"

	"github.com/pkg/errors"

	"github.com/jose-valero/invite-tracker-bot/internal/domain"
)

// ErrForbidden: la plataforma rechazó la acción por falta de autoridad
// del bot (403). Se atrapa en el call site, nunca se propaga como fatal.
var ErrForbidden = errors.New("forbidden")

// ErrNotFound para lookups de members/guilds que no existen.
var ErrNotFound = errors.New("not found")

// Platform es el colaborador de chat. Lo implementa
// internal/adapters/discord.Platform; el core nunca toca tipos de
// discordgo directamente.
type Platform interface {
	FetchInvites(ctx context.Context, guildID string) ([]domain.Invite, error)
	// GuildRoles devuelve la jerarquía ordenada: índice 0 = máxima autoridad.
	GuildRoles(ctx context.Context, guildID string) ([]domain.Role, error)
	GuildMembers(ctx context.Context, guildID string) ([]domain.Member, error)
	GuildMember(ctx context.Context, guildID, memberID string) (domain.Member, error)
	// BotMember es el propio bot como member del guild.
	BotMember(ctx context.Context, guildID string) (domain.Member, error)

	SendMessage(ctx context.Context, channelID, text string) error
	SendDM(ctx context.Context, memberID, text string) error
	// Broadcast manda al canal por defecto del guild.
	Broadcast(ctx context.Context, guildID, text string) error

	GrantRole(ctx context.Context, guildID, memberID, roleID string) error
	DeleteInvite(ctx context.Context, code string) error
	SetPresence(activity string) error
}

// StateStore es el colaborador de persistencia. Lo implementa
// internal/infra/storage.StateRepo.
type StateStore interface {
	Load(ctx context.Context) ([]domain.GuildSnapshot, error)
	Save(ctx context.Context, snaps []domain.GuildSnapshot) error
}
