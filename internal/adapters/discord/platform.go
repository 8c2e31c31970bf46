package discord

import (
	"context"
	"net/http"
	"sort"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"

	"github.com/jose-valero/invite-tracker-bot/internal/app/service"
	"github.com/jose-valero/invite-tracker-bot/internal/domain"
)

// Platform adapta la sesión de discordgo al puerto service.Platform.
// Acá se traduce todo a DTOs del dominio: ningún tipo de discordgo
// cruza esta frontera hacia el core.
type Platform struct {
	s *discordgo.Session
}

func NewPlatform(s *discordgo.Session) *Platform { return &Platform{s: s} }

func (p *Platform) FetchInvites(ctx context.Context, guildID string) ([]domain.Invite, error) {
	raw, err := p.s.GuildInvites(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, errors.Wrap(asDomainErr(err), "guild invites")
	}
	out := make([]domain.Invite, 0, len(raw))
	for _, inv := range raw {
		out = append(out, toInvite(guildID, inv))
	}
	return out, nil
}

// GuildRoles devuelve la jerarquía ya ordenada por autoridad: en
// Discord posición más alta = más autoridad, acá el índice 0 es el rol
// más alto.
func (p *Platform) GuildRoles(ctx context.Context, guildID string) ([]domain.Role, error) {
	raw, err := p.s.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, errors.Wrap(asDomainErr(err), "guild roles")
	}
	sorted := make([]*discordgo.Role, len(raw))
	copy(sorted, raw)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Position > sorted[j].Position })

	out := make([]domain.Role, 0, len(sorted))
	for i, r := range sorted {
		out = append(out, domain.Role{ID: r.ID, Name: r.Name, Position: i})
	}
	return out, nil
}

func (p *Platform) GuildMembers(ctx context.Context, guildID string) ([]domain.Member, error) {
	var out []domain.Member
	after := ""
	for {
		chunk, err := p.s.GuildMembers(guildID, after, 1000, discordgo.WithContext(ctx))
		if err != nil {
			return nil, errors.Wrap(asDomainErr(err), "guild members")
		}
		for _, m := range chunk {
			out = append(out, toMember(m))
		}
		if len(chunk) < 1000 {
			return out, nil
		}
		after = chunk[len(chunk)-1].User.ID
	}
}

func (p *Platform) GuildMember(ctx context.Context, guildID, memberID string) (domain.Member, error) {
	if m, err := p.s.State.Member(guildID, memberID); err == nil && m != nil {
		return toMember(m), nil
	}
	m, err := p.s.GuildMember(guildID, memberID, discordgo.WithContext(ctx))
	if err != nil {
		return domain.Member{}, errors.Wrap(asDomainErr(err), "guild member")
	}
	return toMember(m), nil
}

func (p *Platform) BotMember(ctx context.Context, guildID string) (domain.Member, error) {
	return p.GuildMember(ctx, guildID, p.s.State.User.ID)
}

func (p *Platform) SendMessage(ctx context.Context, channelID, text string) error {
	_, err := p.s.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx))
	return errors.Wrap(asDomainErr(err), "send message")
}

func (p *Platform) SendDM(ctx context.Context, memberID, text string) error {
	ch, err := p.s.UserChannelCreate(memberID, discordgo.WithContext(ctx))
	if err != nil {
		return errors.Wrap(asDomainErr(err), "open dm")
	}
	_, err = p.s.ChannelMessageSend(ch.ID, text, discordgo.WithContext(ctx))
	return errors.Wrap(asDomainErr(err), "send dm")
}

// Broadcast manda al system channel del guild; si no hay, al primer
// canal de texto que aparezca.
func (p *Platform) Broadcast(ctx context.Context, guildID, text string) error {
	channelID, err := p.defaultChannel(ctx, guildID)
	if err != nil {
		return err
	}
	return p.SendMessage(ctx, channelID, text)
}

func (p *Platform) GrantRole(ctx context.Context, guildID, memberID, roleID string) error {
	err := p.s.GuildMemberRoleAdd(guildID, memberID, roleID, discordgo.WithContext(ctx))
	return errors.Wrap(asDomainErr(err), "grant role")
}

func (p *Platform) DeleteInvite(ctx context.Context, code string) error {
	_, err := p.s.InviteDelete(code, discordgo.WithContext(ctx))
	return errors.Wrap(asDomainErr(err), "delete invite")
}

func (p *Platform) SetPresence(activity string) error {
	return p.s.UpdateGameStatus(0, activity)
}

func (p *Platform) defaultChannel(ctx context.Context, guildID string) (string, error) {
	if g, err := p.s.State.Guild(guildID); err == nil && g != nil && g.SystemChannelID != "" {
		return g.SystemChannelID, nil
	}
	g, err := p.s.Guild(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return "", errors.Wrap(asDomainErr(err), "guild")
	}
	if g.SystemChannelID != "" {
		return g.SystemChannelID, nil
	}
	channels, err := p.s.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return "", errors.Wrap(asDomainErr(err), "guild channels")
	}
	for _, ch := range channels {
		if ch.Type == discordgo.ChannelTypeGuildText {
			return ch.ID, nil
		}
	}
	return "", errors.Wrap(service.ErrNotFound, "no text channel")
}

// ---------- mapeo plataforma → dominio ----------

func toInvite(guildID string, inv *discordgo.Invite) domain.Invite {
	out := domain.Invite{
		Code:      inv.Code,
		GuildID:   guildID,
		Uses:      inv.Uses,
		MaxUses:   inv.MaxUses,
		MaxAge:    inv.MaxAge,
		CreatedAt: inv.CreatedAt,
	}
	if inv.Inviter != nil {
		out.InviterID = inv.Inviter.ID
		out.InviterName = inv.Inviter.Username
	}
	return out
}

func toMember(m *discordgo.Member) domain.Member {
	name := m.Nick
	if name == "" && m.User != nil {
		name = m.User.Username
	}
	out := domain.Member{Name: name, RoleIDs: m.Roles}
	if m.User != nil {
		out.ID = m.User.ID
	}
	return out
}

// asDomainErr traduce el 403 de la API al sentinel del core; el resto
// pasa tal cual.
func asDomainErr(err error) error {
	if err == nil {
		return nil
	}
	var rerr *discordgo.RESTError
	if errors.As(err, &rerr) && rerr.Response != nil && rerr.Response.StatusCode == http.StatusForbidden {
		return errors.Wrap(service.ErrForbidden, err.Error())
	}
	return err
}
