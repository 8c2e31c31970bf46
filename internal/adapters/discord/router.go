// Acá vive el enganche con el gateway: eventos de discordgo entran,
// se traducen y se despachan a los servicios. Cada handler se protege
// con recover: ningún evento puede voltear al dispatcher.
package discord

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/jose-valero/invite-tracker-bot/internal/app/service"
)

const handlerTimeout = 12 * time.Second

var reRole = regexp.MustCompile(`^!role\s+(\d+)\s+(\d+)\s*$`)

type Router struct {
	s        *discordgo.Session
	log      *zap.Logger
	platform *Platform
	tracker  *service.TrackerService
	rank     *service.RankService
}

func NewRouter(s *discordgo.Session, log *zap.Logger, platform *Platform, tracker *service.TrackerService, rank *service.RankService) *Router {
	return &Router{s: s, log: log, platform: platform, tracker: tracker, rank: rank}
}

func (r *Router) Handlers() {
	r.s.AddHandler(r.onReady)
	r.s.AddHandler(r.onGuildCreate)
	r.s.AddHandler(r.onGuildDelete)
	r.s.AddHandler(r.onMemberAdd)
	r.s.AddHandler(r.onMemberRemove)
	r.s.AddHandler(r.onRoleDelete)
	r.s.AddHandler(r.onMessage)
}

func (r *Router) onReady(_ *discordgo.Session, ev *discordgo.Ready) {
	defer r.recovered("ready")
	ctx, cancel := r.handlerCtx()
	defer cancel()

	r.log.Info("conectado", zap.String("user", ev.User.Username), zap.Int("guilds", len(ev.Guilds)))
	r.tracker.HandleReady(ctx)
}

func (r *Router) onGuildCreate(_ *discordgo.Session, ev *discordgo.GuildCreate) {
	defer r.recovered("guild_create")
	ctx, cancel := r.handlerCtx()
	defer cancel()

	if err := r.tracker.HandleGuildCreate(ctx, ev.ID, ev.Name, ev.MemberCount); err != nil {
		r.log.Error("guild create", zap.String("guild", ev.ID), zap.Error(err))
	}
}

func (r *Router) onGuildDelete(_ *discordgo.Session, ev *discordgo.GuildDelete) {
	defer r.recovered("guild_delete")

	// Unavailable = outage de Discord, no nos echaron
	if ev.Unavailable {
		return
	}
	r.tracker.HandleGuildDelete(ev.ID)
}

func (r *Router) onMemberAdd(_ *discordgo.Session, ev *discordgo.GuildMemberAdd) {
	defer r.recovered("member_add")
	ctx, cancel := r.handlerCtx()
	defer cancel()

	if err := r.tracker.HandleMemberJoin(ctx, ev.GuildID, toMember(ev.Member)); err != nil {
		r.log.Error("member join", zap.String("guild", ev.GuildID), zap.Error(err))
	}
}

func (r *Router) onMemberRemove(_ *discordgo.Session, ev *discordgo.GuildMemberRemove) {
	defer r.recovered("member_remove")
	ctx, cancel := r.handlerCtx()
	defer cancel()

	if err := r.tracker.HandleMemberLeave(ctx, ev.GuildID, toMember(ev.Member)); err != nil {
		r.log.Error("member leave", zap.String("guild", ev.GuildID), zap.Error(err))
	}
}

func (r *Router) onRoleDelete(_ *discordgo.Session, ev *discordgo.GuildRoleDelete) {
	defer r.recovered("role_delete")
	r.tracker.HandleRoleDelete(ev.GuildID, ev.RoleID)
}

func (r *Router) onMessage(s *discordgo.Session, ev *discordgo.MessageCreate) {
	defer r.recovered("message")

	if ev.Author == nil || ev.Author.Bot || ev.Author.ID == s.State.User.ID {
		return
	}
	text := strings.TrimSpace(ev.Content)
	if !strings.HasPrefix(text, "!") {
		return
	}

	ctx, cancel := r.handlerCtx()
	defer cancel()

	fields := strings.Fields(text)
	cmd := fields[0]

	// !test responde también por DM
	if cmd == "!test" {
		r.reply(ctx, ev.ChannelID, "👋 Hello!")
		return
	}

	// el resto son comandos de guild
	if ev.GuildID == "" {
		return
	}
	r.log.Info("cmd", zap.String("cmd", cmd), zap.String("by", ev.Author.ID), zap.String("guild", ev.GuildID))

	switch cmd {
	case "!roles":
		msg, err := r.rank.RolesOverview(ctx, ev.GuildID)
		if err != nil {
			r.log.Warn("roles overview", zap.Error(err))
			msg = "⚠️ No pude listar los roles: " + err.Error()
		}
		r.reply(ctx, ev.ChannelID, msg)

	case "!role":
		m := reRole.FindStringSubmatch(text)
		if m == nil {
			r.reply(ctx, ev.ChannelID, "❌ Uso: `!role <posición> <puntos>` (mirá `!roles` para las posiciones).")
			return
		}
		position, _ := strconv.Atoi(m[1])
		points, _ := strconv.Atoi(m[2])
		// el chequeo de admin vive en el servicio
		msg, err := r.rank.SetRolePoints(ctx, ev.GuildID, ev.Author.ID, position, points)
		if err != nil {
			r.log.Warn("set role points", zap.Error(err))
			msg = "⚠️ No pude configurar el umbral: " + err.Error()
		}
		r.reply(ctx, ev.ChannelID, msg)

	case "!rank", "!invites":
		msg, err := r.rank.Rank(ctx, ev.GuildID, ev.Author.ID)
		if err != nil {
			r.log.Warn("rank", zap.Error(err))
			r.reply(ctx, ev.ChannelID, "⚠️ No pude calcular tu rango.")
			return
		}
		r.dm(ctx, ev.Author.ID, msg)

	case "!backup":
		if !r.requireAdmin(ctx, ev) {
			return
		}
		msg, err := r.rank.Backup(ctx)
		if err != nil {
			// el save nunca es fatal, pero el que lo pidió se entera
			r.log.Error("backup", zap.Error(err))
			msg = "⚠️ No pude guardar el estado: " + err.Error()
		}
		r.reply(ctx, ev.ChannelID, msg)
	}
}

func (r *Router) handlerCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), handlerTimeout)
}

func (r *Router) recovered(handler string) {
	if rec := recover(); rec != nil {
		r.log.Error("panic en handler", zap.String("handler", handler), zap.Any("panic", rec))
	}
}
