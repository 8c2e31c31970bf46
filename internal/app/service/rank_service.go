package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/jose-valero/invite-tracker-bot/internal/domain"
)

// RankService arma las respuestas de los comandos de texto
// (!roles, !role, !rank, !backup). Devuelve strings listos para mandar,
// como hace el resto de servicios.
type RankService struct {
	log      *zap.Logger
	platform Platform
	bot      *domain.BotState
	store    StateStore
}

func NewRankService(log *zap.Logger, platform Platform, bot *domain.BotState, store StateStore) *RankService {
	return &RankService{log: log, platform: platform, bot: bot, store: store}
}

// IsAdmin: única regla de permisos del bot — el top role del author
// tiene que ser el rol más alto del guild.
func (s *RankService) IsAdmin(ctx context.Context, guildID, memberID string) (bool, error) {
	hierarchy, err := s.platform.GuildRoles(ctx, guildID)
	if err != nil {
		return false, errors.Wrap(err, "fetch roles")
	}
	if len(hierarchy) == 0 {
		return false, nil
	}
	member, err := s.platform.GuildMember(ctx, guildID, memberID)
	if err != nil {
		return false, errors.Wrap(err, "fetch member")
	}
	top, ok := domain.TopRole(member, hierarchy)
	return ok && top.ID == hierarchy[0].ID, nil
}

// RolesOverview lista la jerarquía con su umbral actual (!roles).
func (s *RankService) RolesOverview(ctx context.Context, guildID string) (string, error) {
	st, ok := s.bot.Guild(guildID)
	if !ok {
		return "", errors.Errorf("guild no trackeado %s", guildID)
	}
	hierarchy, err := s.platform.GuildRoles(ctx, guildID)
	if err != nil {
		return "", errors.Wrap(err, "fetch roles")
	}

	st.Lock()
	defer st.Unlock()

	rows := make([]string, 0, len(hierarchy))
	for i, role := range hierarchy {
		base := st.BasePoints(role.ID)
		umbral := "sin umbral"
		if base != domain.UnsetBasePoints {
			umbral = fmt.Sprintf("%d puntos", base)
		}
		rows = append(rows, fmt.Sprintf("[%d] **%s** (%s)", i, role.Name, umbral))
	}
	return strings.Join(rows, "\n"), nil
}

// SetRolePoints fija el umbral del rol en esa posición de la jerarquía
// (!role <pos> <puntos>). Sólo el author con el rol más alto puede;
// entrada inválida es un no-op con mensaje visible, nunca un crash.
func (s *RankService) SetRolePoints(ctx context.Context, guildID, authorID string, position, points int) (string, error) {
	admin, err := s.IsAdmin(ctx, guildID, authorID)
	if err != nil {
		return "", errors.Wrap(err, "check admin")
	}
	if !admin {
		return "🔒 Necesitás el rol más alto del server para configurar umbrales.", nil
	}

	st, ok := s.bot.Guild(guildID)
	if !ok {
		return "", errors.Errorf("guild no trackeado %s", guildID)
	}
	hierarchy, err := s.platform.GuildRoles(ctx, guildID)
	if err != nil {
		return "", errors.Wrap(err, "fetch roles")
	}
	if position < 0 || position >= len(hierarchy) {
		return fmt.Sprintf("❌ Posición %d inválida, usá 0..%d (mirá `!roles`).", position, len(hierarchy)-1), nil
	}
	if points < 0 {
		return "❌ Los puntos no pueden ser negativos.", nil
	}

	role := hierarchy[position]
	st.Lock()
	st.SetBasePoints(role.ID, points)
	st.Unlock()

	s.log.Info("umbral configurado", zap.String("guild", guildID), zap.String("role", role.Name), zap.Int("points", points))
	return fmt.Sprintf("✅ El rol **%s** quedó en **%d** puntos.", role.Name, points), nil
}

// Rank arma el resumen para DM (!rank / !invites): puntos actuales,
// rango más cercano que falta y cuántos puntos faltan.
func (s *RankService) Rank(ctx context.Context, guildID, memberID string) (string, error) {
	st, ok := s.bot.Guild(guildID)
	if !ok {
		return "", errors.Errorf("guild no trackeado %s", guildID)
	}
	hierarchy, err := s.platform.GuildRoles(ctx, guildID)
	if err != nil {
		return "", errors.Wrap(err, "fetch roles")
	}

	st.Lock()
	current := st.Points(memberID)
	missing := st.MissingRoles(current)
	st.Unlock()

	if len(missing) == 0 {
		return fmt.Sprintf("🏆 Tenés **%d** puntos y ningún rango pendiente.", current), nil
	}

	// el "más cercano" es el de menor umbral entre los que faltan
	nearestID, nearest := "", 0
	for roleID, base := range missing {
		if nearestID == "" || base < nearest {
			nearestID, nearest = roleID, base
		}
	}
	name := nearestID
	for _, r := range hierarchy {
		if r.ID == nearestID {
			name = r.Name
			break
		}
	}
	return fmt.Sprintf("🏅 Tenés **%d** puntos.\n🎯 Próximo rango: **%s** (te faltan **%d** puntos).", current, name, nearest-current), nil
}

// Backup persiste el estado completo a pedido (!backup).
func (s *RankService) Backup(ctx context.Context) (string, error) {
	if err := s.store.Save(ctx, s.bot.Snapshot()); err != nil {
		return "", errors.Wrap(err, "save state")
	}
	return "💾 Estado guardado.", nil
}
