package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// reply manda al canal; si falla sólo se loguea, nunca escala.
func (r *Router) reply(ctx context.Context, channelID, text string) {
	if err := r.platform.SendMessage(ctx, channelID, text); err != nil {
		r.log.Warn("no pude responder", zap.String("channel", channelID), zap.Error(err))
	}
}

// dm manda por privado al member.
func (r *Router) dm(ctx context.Context, memberID, text string) {
	if err := r.platform.SendDM(ctx, memberID, text); err != nil {
		r.log.Warn("no pude mandar DM", zap.String("member", memberID), zap.Error(err))
	}
}

// requireAdmin: el author tiene que tener el rol más alto del guild.
func (r *Router) requireAdmin(ctx context.Context, ev *discordgo.MessageCreate) bool {
	ok, err := r.rank.IsAdmin(ctx, ev.GuildID, ev.Author.ID)
	if err != nil {
		r.log.Warn("no pude chequear permisos", zap.String("member", ev.Author.ID), zap.Error(err))
		r.reply(ctx, ev.ChannelID, "⚠️ No pude verificar tus permisos, probá de nuevo.")
		return false
	}
	if !ok {
		r.reply(ctx, ev.ChannelID, "🔒 Necesitás el rol más alto del server para esto.")
		return false
	}
	return true
}
