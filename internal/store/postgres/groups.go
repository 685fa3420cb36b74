package postgres

import (
	"context"

	"github.com/alecgard/mergeflow/internal/domain"
	"github.com/alecgard/mergeflow/internal/id"
)

const groupColumns = `id, team_id, name, member_ids, created_at, updated_at`

type groupRepo struct{ *tx }

func scanGroup(scan func(dest ...any) error) (*domain.Group, error) {
	g := &domain.Group{}
	var members []string
	if err := scan(&g.ID, &g.TeamID, &g.Name, &members, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, err
	}
	g.Members = id.FromStrings(members)
	return g, nil
}

func (r groupRepo) Insert(ctx context.Context, g *domain.Group) error {
	err := r.q.QueryRow(ctx,
		`INSERT INTO team_groups (id, team_id, name, member_ids)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at, updated_at`,
		g.ID.String(), g.TeamID.String(), g.Name, id.Strings(g.Members),
	).Scan(&g.CreatedAt, &g.UpdatedAt)
	return mapErr("inserting group", err)
}

func (r groupRepo) getOne(ctx context.Context, op, where string, args ...any) (*domain.Group, error) {
	g, err := scanGroup(func(dest ...any) error {
		return r.q.QueryRow(ctx, `SELECT `+groupColumns+` FROM team_groups WHERE `+where+r.forUpdate(), args...).Scan(dest...)
	})
	if err != nil {
		return nil, mapErr(op, err)
	}
	return g, nil
}

func (r groupRepo) Get(ctx context.Context, groupID id.ID) (*domain.Group, error) {
	return r.getOne(ctx, "getting group", `id = $1`, groupID.String())
}

func (r groupRepo) GetByName(ctx context.Context, teamID id.ID, name string) (*domain.Group, error) {
	return r.getOne(ctx, "getting group by name", `team_id = $1 AND name = $2`, teamID.String(), name)
}

func (r groupRepo) ListByTeam(ctx context.Context, teamID id.ID) ([]*domain.Group, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+groupColumns+` FROM team_groups WHERE team_id = $1 ORDER BY id`, teamID.String())
	return collect(rows, err, "listing groups", scanGroup)
}

func (r groupRepo) ListByIDs(ctx context.Context, teamID id.ID, ids []id.ID) ([]*domain.Group, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+groupColumns+` FROM team_groups WHERE team_id = $1 AND id = ANY($2::text[]::uuid[]) ORDER BY id`,
		teamID.String(), id.Strings(ids))
	return collect(rows, err, "listing groups by id", scanGroup)
}

func (r groupRepo) Update(ctx context.Context, g *domain.Group) error {
	err := r.q.QueryRow(ctx,
		`UPDATE team_groups SET name = $2, member_ids = $3, updated_at = now()
		 WHERE id = $1
		 RETURNING updated_at`,
		g.ID.String(), g.Name, id.Strings(g.Members),
	).Scan(&g.UpdatedAt)
	return mapErr("updating group", err)
}

func (r groupRepo) RemoveMembers(ctx context.Context, memberIDs []id.ID) error {
	if len(memberIDs) == 0 {
		return nil
	}
	_, err := execAffected(ctx, r.q, "removing members from groups",
		`UPDATE team_groups
		 SET member_ids = ARRAY(SELECT m FROM unnest(member_ids) WITH ORDINALITY AS u(m, n)
		                        WHERE m <> ALL($1::text[]) ORDER BY n),
		     updated_at = now()
		 WHERE member_ids && $1::text[]`,
		id.Strings(memberIDs))
	return err
}

func (r groupRepo) DeleteMany(ctx context.Context, ids []id.ID) (int64, error) {
	return execAffected(ctx, r.q, "deleting groups",
		`DELETE FROM team_groups WHERE id = ANY($1::text[]::uuid[])`, id.Strings(ids))
}

func (r groupRepo) DeleteByTeam(ctx context.Context, teamID id.ID) (int64, error) {
	return execAffected(ctx, r.q, "deleting team groups",
		`DELETE FROM team_groups WHERE team_id = $1`, teamID.String())
}
