package service

import (
	"context"
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/jose-valero/invite-tracker-bot/internal/domain"
)

// presencia random del bot
var games = []string{"Amnesia", "Outlast", "Resident Evil", "Little Nightmares", "Silent Hill"}

// TrackerService es el motor de atribución: escucha joins/leaves,
// diffea invites, reparte puntos y otorga roles por umbral.
type TrackerService struct {
	log        *zap.Logger
	platform   Platform
	bot        *domain.BotState
	operatorID string
}

func NewTrackerService(log *zap.Logger, platform Platform, bot *domain.BotState, operatorID string) *TrackerService {
	return &TrackerService{
		log:        log,
		platform:   platform,
		bot:        bot,
		operatorID: operatorID,
	}
}

// HandleReady se dispara una vez conectado: presencia y nada más; los
// guilds llegan uno a uno vía HandleGuildCreate.
func (s *TrackerService) HandleReady(ctx context.Context) {
	game := games[rand.Intn(len(games))]
	if err := s.platform.SetPresence(game); err != nil {
		s.log.Warn("no pude setear presencia", zap.Error(err))
	}
	s.log.Info("bot listo", zap.String("playing", game))
}

// HandleGuildCreate registra el guild (al arrancar o al ser invitado),
// toma el baseline de invites y siembra puntos de members existentes.
func (s *TrackerService) HandleGuildCreate(ctx context.Context, guildID, name string, memberCount int) error {
	st := s.bot.AddGuild(guildID, memberCount)

	// AddGuild ya hace visible el guild para los joins: el lock se toma
	// ANTES del fetch, igual que en HandleMemberJoin, para que un join
	// concurrente no pueda premiar y rebasear entre nuestra foto y
	// nuestro TrackInvites (eso re-contaría el uso en el próximo diff).
	st.Lock()
	defer st.Unlock()

	invites, err := s.platform.FetchInvites(ctx, guildID)
	if err != nil {
		return errors.Wrapf(err, "fetch invites de %s", guildID)
	}
	hierarchy, err := s.platform.GuildRoles(ctx, guildID)
	if err != nil {
		return errors.Wrapf(err, "fetch roles de %s", guildID)
	}
	members, err := s.platform.GuildMembers(ctx, guildID)
	if err != nil {
		return errors.Wrapf(err, "fetch members de %s", guildID)
	}

	st.TrackInvites(invites)
	st.InitPoints(members, hierarchy)

	for _, r := range hierarchy {
		s.log.Debug("role", zap.String("guild", guildID), zap.String("id", r.ID), zap.String("name", r.Name), zap.Int("position", r.Position))
	}
	for _, inv := range invites {
		s.log.Debug("invite baseline", zap.String("guild", guildID), zap.String("url", inv.URL()), zap.String("inviter", inv.InviterName), zap.Int("uses", inv.Uses))
	}
	s.log.Info("guild trackeado", zap.String("guild", guildID), zap.String("name", name), zap.Int("members", memberCount), zap.Int("invites", len(invites)))
	return nil
}

// HandleGuildDelete descarta el estado del guild que dejamos.
func (s *TrackerService) HandleGuildDelete(guildID string) {
	s.bot.RemoveGuild(guildID)
	s.log.Info("guild descartado", zap.String("guild", guildID))
}

// HandleRoleDelete saca el rol borrado del libro de umbrales.
func (s *TrackerService) HandleRoleDelete(guildID, roleID string) {
	st, ok := s.bot.Guild(guildID)
	if !ok {
		return
	}
	st.Lock()
	st.ClearBasePoints(roleID)
	st.Unlock()
	s.log.Info("umbral descartado por rol borrado", zap.String("guild", guildID), zap.String("role", roleID))
}

// HandleMemberJoin corre la secuencia fetch → diff → score → award? →
// rebase. El lock del guild se mantiene durante toda la cadena: dos
// joins seguidos no pueden diffear contra el mismo baseline viejo.
func (s *TrackerService) HandleMemberJoin(ctx context.Context, guildID string, member domain.Member) error {
	st, ok := s.bot.Guild(guildID)
	if !ok {
		return errors.Errorf("join en guild no trackeado %s", guildID)
	}
	s.log.Info("member joined", zap.String("guild", guildID), zap.String("member", member.ID), zap.String("name", member.Name))

	st.Lock()
	defer st.Unlock()

	invites, err := s.platform.FetchInvites(ctx, guildID)
	if err != nil {
		// sin foto fresca no hay diff; el estado queda intacto
		return errors.Wrapf(err, "fetch invites de %s", guildID)
	}

	gains := st.CalcPoints(invites)
	newMember := st.AddMember(member)

	joined := 0
	for _, g := range gains {
		joined += g.Gained
		s.log.Debug("invite gain",
			zap.String("guild", guildID),
			zap.String("url", g.Invite.URL()),
			zap.String("inviter", g.Invite.InviterID),
			zap.Int("gained", g.Gained),
		)
	}

	// Con señal débil (joined <= 1 y el member ya era conocido) asumimos
	// que el uso ya fue contado y no premiamos de nuevo.
	if joined > 1 || (joined == 1 && newMember) {
		hierarchy, err := s.platform.GuildRoles(ctx, guildID)
		if err != nil {
			s.log.Warn("sin jerarquía de roles, premio puntos sin evaluar umbrales", zap.String("guild", guildID), zap.Error(err))
		}
		for _, g := range gains {
			s.awardInviter(ctx, st, guildID, hierarchy, g)
		}
	} else {
		s.log.Debug("gain ya contado, no se premia", zap.String("guild", guildID), zap.Int("joined", joined), zap.Bool("new_member", newMember))
	}

	st.TrackInvites(invites)

	if member.ID == s.operatorID {
		s.welcomeOperator(ctx, guildID, member)
	}
	return nil
}

// awardInviter suma los puntos ganados al dueño del invite y evalúa
// todos los umbrales contra el total nuevo. Un 403 en un rol se loguea
// y se sigue con el resto.
func (s *TrackerService) awardInviter(ctx context.Context, st *domain.GuildState, guildID string, hierarchy []domain.Role, gain domain.InviteGain) {
	inviterID := gain.Invite.InviterID
	total := st.AwardMember(inviterID, gain.Gained)
	s.log.Info("puntos otorgados",
		zap.String("guild", guildID),
		zap.String("inviter", inviterID),
		zap.Int("gained", gain.Gained),
		zap.Int("total", total),
	)

	inviter, err := s.platform.GuildMember(ctx, guildID, inviterID)
	if err != nil {
		// sin los roles actuales no podemos saltear los ya otorgados
		s.log.Warn("no pude leer al inviter, re-intento otorgar igual", zap.String("member", inviterID), zap.Error(err))
		inviter = domain.Member{ID: inviterID}
	}

	for _, role := range hierarchy {
		base := st.BasePoints(role.ID)
		if base == domain.UnsetBasePoints || total < base {
			continue
		}
		if inviter.HasRole(role.ID) {
			continue
		}
		err := s.platform.GrantRole(ctx, guildID, inviterID, role.ID)
		switch {
		case errors.Is(err, ErrForbidden):
			s.log.Warn("sin autoridad para otorgar rol", zap.String("guild", guildID), zap.String("role", role.Name))
		case err != nil:
			s.log.Warn("no pude otorgar rol", zap.String("guild", guildID), zap.String("role", role.Name), zap.Error(err))
		default:
			s.log.Info("rol otorgado", zap.String("guild", guildID), zap.String("member", inviterID), zap.String("role", role.Name))
		}
	}
}

// HandleMemberLeave marca al member como runaway y borra (best effort)
// los invites que creó. Sus puntos quedan; memberCount no se decrementa.
func (s *TrackerService) HandleMemberLeave(ctx context.Context, guildID string, member domain.Member) error {
	st, ok := s.bot.Guild(guildID)
	if !ok {
		return errors.Errorf("leave en guild no trackeado %s", guildID)
	}
	s.log.Info("member left, no lo vamos a olvidar", zap.String("guild", guildID), zap.String("member", member.ID), zap.String("name", member.Name))

	st.Lock()
	defer st.Unlock()

	st.TrackRunaway(member, time.Now())

	invites, err := s.platform.FetchInvites(ctx, guildID)
	if err != nil {
		return errors.Wrapf(err, "fetch invites de %s", guildID)
	}
	for _, inv := range invites {
		if inv.InviterID != member.ID {
			continue
		}
		if err := s.platform.DeleteInvite(ctx, inv.Code); err != nil {
			s.log.Warn("no pude borrar invite", zap.String("url", inv.URL()), zap.Error(err))
			continue
		}
		s.log.Info("invite del runaway borrado", zap.String("guild", guildID), zap.String("url", inv.URL()))
	}
	return nil
}

// welcomeOperator: regla fija fuera del sistema de puntos. Al operador
// se le da el segundo rol más alto del bot y un saludo en el canal
// por defecto.
func (s *TrackerService) welcomeOperator(ctx context.Context, guildID string, member domain.Member) {
	me, err := s.platform.BotMember(ctx, guildID)
	if err != nil {
		s.log.Warn("no pude leer al bot member", zap.String("guild", guildID), zap.Error(err))
		return
	}
	hierarchy, err := s.platform.GuildRoles(ctx, guildID)
	if err != nil {
		s.log.Warn("no pude leer la jerarquía", zap.String("guild", guildID), zap.Error(err))
		return
	}

	var mine []domain.Role
	for _, r := range hierarchy {
		if me.HasRole(r.ID) {
			mine = append(mine, r)
		}
	}
	if len(mine) < 2 {
		s.log.Warn("el bot no tiene un segundo rol para el operador", zap.String("guild", guildID))
		return
	}
	// mine ya viene ordenado por autoridad: [1] es el segundo más alto
	if err := s.platform.GrantRole(ctx, guildID, member.ID, mine[1].ID); err != nil && !errors.Is(err, ErrForbidden) {
		s.log.Warn("no pude otorgar rol al operador", zap.String("guild", guildID), zap.Error(err))
	}
	if err := s.platform.Broadcast(ctx, guildID, "Welcome my master!"); err != nil {
		s.log.Warn("no pude saludar al operador", zap.String("guild", guildID), zap.Error(err))
	}
}
