package storage

import (
	"context"
	"database/sql"

	pq "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/jose-valero/invite-tracker-bot/internal/domain"
)

// StateRepo persiste el BotState completo: un Save reemplaza todo en
// una transacción, un Load reconstruye todos los guilds. DB vacía =
// arrancamos de cero.
type StateRepo struct{ db *sql.DB }

func NewStateRepo(db *sql.DB) *StateRepo { return &StateRepo{db: db} }

func (r *StateRepo) Save(ctx context.Context, snaps []domain.GuildSnapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	// guilds que ya no trackeamos se van (con sus hijos por cascade)
	ids := make([]string, 0, len(snaps))
	for _, s := range snaps {
		ids = append(ids, s.ID)
	}
	if _, err := tx.ExecContext(ctx, `
DELETE FROM guilds WHERE guild_id <> ALL($1)
`, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "prune guilds")
	}

	for _, snap := range snaps {
		if err := saveGuild(ctx, tx, snap); err != nil {
			return errors.Wrapf(err, "save guild %s", snap.ID)
		}
	}
	return errors.Wrap(tx.Commit(), "commit")
}

func saveGuild(ctx context.Context, tx *sql.Tx, snap domain.GuildSnapshot) error {
	if _, err := tx.ExecContext(ctx, `
INSERT INTO guilds (guild_id, member_count, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (guild_id) DO UPDATE SET
  member_count = EXCLUDED.member_count,
  updated_at   = now()
`, snap.ID, snap.MemberCount); err != nil {
		return errors.Wrap(err, "upsert guild")
	}

	// reemplazo total de los hijos: es un snapshot, no un merge
	for _, table := range []string{"guild_invites", "guild_points", "guild_role_points", "guild_runaways"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE guild_id = $1`, snap.ID); err != nil {
			return errors.Wrapf(err, "clear %s", table)
		}
	}

	for _, inv := range snap.Invites {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO guild_invites (guild_id, code, inviter_id, inviter_name, uses, max_uses, max_age, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`, snap.ID, inv.Code, inv.InviterID, inv.InviterName, inv.Uses, inv.MaxUses, inv.MaxAge, inv.CreatedAt); err != nil {
			return errors.Wrap(err, "insert invite")
		}
	}
	for memberID, points := range snap.Points {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO guild_points (guild_id, member_id, points) VALUES ($1, $2, $3)
`, snap.ID, memberID, points); err != nil {
			return errors.Wrap(err, "insert points")
		}
	}
	for roleID, points := range snap.RolePoints {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO guild_role_points (guild_id, role_id, points) VALUES ($1, $2, $3)
`, snap.ID, roleID, points); err != nil {
			return errors.Wrap(err, "insert role points")
		}
	}
	for _, run := range snap.Runaways {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO guild_runaways (guild_id, member_id, member_name, left_at) VALUES ($1, $2, $3, $4)
`, snap.ID, run.Member.ID, run.Member.Name, run.LeftAt); err != nil {
			return errors.Wrap(err, "insert runaway")
		}
	}
	return nil
}

func (r *StateRepo) Load(ctx context.Context) ([]domain.GuildSnapshot, error) {
	byGuild := map[string]*domain.GuildSnapshot{}
	var order []string

	rows, err := r.db.QueryContext(ctx, `SELECT guild_id, member_count FROM guilds`)
	if err != nil {
		return nil, errors.Wrap(err, "load guilds")
	}
	defer rows.Close()
	for rows.Next() {
		var snap domain.GuildSnapshot
		if err := rows.Scan(&snap.ID, &snap.MemberCount); err != nil {
			return nil, errors.Wrap(err, "scan guild")
		}
		snap.Points = map[string]int{}
		snap.RolePoints = map[string]int{}
		byGuild[snap.ID] = &snap
		order = append(order, snap.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "load guilds")
	}

	if err := r.loadInvites(ctx, byGuild); err != nil {
		return nil, err
	}
	if err := r.loadLedgers(ctx, byGuild); err != nil {
		return nil, err
	}
	if err := r.loadRunaways(ctx, byGuild); err != nil {
		return nil, err
	}

	snaps := make([]domain.GuildSnapshot, 0, len(order))
	for _, id := range order {
		snaps = append(snaps, *byGuild[id])
	}
	return snaps, nil
}

func (r *StateRepo) loadInvites(ctx context.Context, byGuild map[string]*domain.GuildSnapshot) error {
	rows, err := r.db.QueryContext(ctx, `
SELECT guild_id, code, inviter_id, inviter_name, uses, max_uses, max_age, created_at
  FROM guild_invites
`)
	if err != nil {
		return errors.Wrap(err, "load invites")
	}
	defer rows.Close()
	for rows.Next() {
		var guildID string
		var inv domain.Invite
		if err := rows.Scan(&guildID, &inv.Code, &inv.InviterID, &inv.InviterName, &inv.Uses, &inv.MaxUses, &inv.MaxAge, &inv.CreatedAt); err != nil {
			return errors.Wrap(err, "scan invite")
		}
		inv.GuildID = guildID
		if snap, ok := byGuild[guildID]; ok {
			snap.Invites = append(snap.Invites, inv)
		}
	}
	return errors.Wrap(rows.Err(), "load invites")
}

func (r *StateRepo) loadLedgers(ctx context.Context, byGuild map[string]*domain.GuildSnapshot) error {
	rows, err := r.db.QueryContext(ctx, `SELECT guild_id, member_id, points FROM guild_points`)
	if err != nil {
		return errors.Wrap(err, "load points")
	}
	defer rows.Close()
	for rows.Next() {
		var guildID, memberID string
		var points int
		if err := rows.Scan(&guildID, &memberID, &points); err != nil {
			return errors.Wrap(err, "scan points")
		}
		if snap, ok := byGuild[guildID]; ok {
			snap.Points[memberID] = points
		}
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "load points")
	}

	roleRows, err := r.db.QueryContext(ctx, `SELECT guild_id, role_id, points FROM guild_role_points`)
	if err != nil {
		return errors.Wrap(err, "load role points")
	}
	defer roleRows.Close()
	for roleRows.Next() {
		var guildID, roleID string
		var points int
		if err := roleRows.Scan(&guildID, &roleID, &points); err != nil {
			return errors.Wrap(err, "scan role points")
		}
		if snap, ok := byGuild[guildID]; ok {
			snap.RolePoints[roleID] = points
		}
	}
	return errors.Wrap(roleRows.Err(), "load role points")
}

func (r *StateRepo) loadRunaways(ctx context.Context, byGuild map[string]*domain.GuildSnapshot) error {
	rows, err := r.db.QueryContext(ctx, `
SELECT guild_id, member_id, member_name, left_at FROM guild_runaways
`)
	if err != nil {
		return errors.Wrap(err, "load runaways")
	}
	defer rows.Close()
	for rows.Next() {
		var guildID string
		var run domain.Runaway
		if err := rows.Scan(&guildID, &run.Member.ID, &run.Member.Name, &run.LeftAt); err != nil {
			return errors.Wrap(err, "scan runaway")
		}
		if snap, ok := byGuild[guildID]; ok {
			snap.Runaways = append(snap.Runaways, run)
		}
	}
	return errors.Wrap(rows.Err(), "load runaways")
}
