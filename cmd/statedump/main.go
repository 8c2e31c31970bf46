// statedump: herramienta suelta para mirar el estado persistido sin
// levantar el bot. Imprime conteos, puntos e invites por guild.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		fmt.Println("DATABASE_URL empty")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		fmt.Println("parse:", err)
		os.Exit(1)
	}
	cfg.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		fmt.Println("pool:", err)
		os.Exit(1)
	}
	defer pool.Close()

	rows, err := pool.Query(ctx, `
SELECT g.guild_id,
       g.member_count,
       (SELECT count(*) FROM guild_invites  i WHERE i.guild_id = g.guild_id),
       (SELECT count(*) FROM guild_runaways r WHERE r.guild_id = g.guild_id)
  FROM guilds g
 ORDER BY g.guild_id
`)
	if err != nil {
		fmt.Println("query:", err)
		os.Exit(1)
	}
	defer rows.Close()

	for rows.Next() {
		var guildID string
		var members, invites, runaways int
		if err := rows.Scan(&guildID, &members, &invites, &runaways); err != nil {
			fmt.Println("scan:", err)
			os.Exit(1)
		}
		fmt.Printf("guild %s: %d members, %d invites, %d runaways\n", guildID, members, invites, runaways)
		dumpPoints(ctx, pool, guildID)
	}
	if rows.Err() != nil {
		fmt.Println("rows:", rows.Err())
		os.Exit(1)
	}
}

func dumpPoints(ctx context.Context, pool *pgxpool.Pool, guildID string) {
	rows, err := pool.Query(ctx, `
SELECT member_id, points
  FROM guild_points
 WHERE guild_id = $1
 ORDER BY points DESC, member_id
`, guildID)
	if err != nil {
		fmt.Println("points:", err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var memberID string
		var points int
		if err := rows.Scan(&memberID, &points); err != nil {
			fmt.Println("scan:", err)
			return
		}
		fmt.Printf("  -> %s: %d\n", memberID, points)
	}
}
