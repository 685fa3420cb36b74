package postgres

import (
	"context"

	"github.com/alecgard/mergeflow/internal/domain"
	"github.com/alecgard/mergeflow/internal/id"
)

const memberColumns = `id, team_id, name, email, uid, company, role, type, phone_number,
	avatar_url, is_verified, status, group_id, created_at, updated_at`

type memberRepo struct{ *tx }

func scanMember(scan func(dest ...any) error) (*domain.Member, error) {
	m := &domain.Member{}
	var groupID *string
	err := scan(&m.ID, &m.TeamID, &m.Name, &m.Email, &m.UID, &m.Company, &m.Role, &m.Type,
		&m.PhoneNumber, &m.AvatarURL, &m.IsVerified, &m.Status, &groupID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if groupID != nil {
		m.GroupID = id.ID(*groupID)
	}
	return m, nil
}

// nullableID maps the zero id to SQL NULL.
func nullableID(v id.ID) *string {
	if v.IsZero() {
		return nil
	}
	s := v.String()
	return &s
}

func (r memberRepo) Insert(ctx context.Context, m *domain.Member) error {
	err := r.q.QueryRow(ctx,
		`INSERT INTO members (id, team_id, name, email, uid, company, role, type, phone_number,
			avatar_url, is_verified, status, group_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING created_at, updated_at`,
		m.ID.String(), m.TeamID.String(), m.Name, m.Email, m.UID, m.Company, m.Role, m.Type,
		m.PhoneNumber, m.AvatarURL, m.IsVerified, string(m.Status), nullableID(m.GroupID),
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	return mapErr("inserting member", err)
}

func (r memberRepo) getOne(ctx context.Context, op, where string, args ...any) (*domain.Member, error) {
	m, err := scanMember(func(dest ...any) error {
		return r.q.QueryRow(ctx, `SELECT `+memberColumns+` FROM members WHERE `+where+r.forUpdate(), args...).Scan(dest...)
	})
	if err != nil {
		return nil, mapErr(op, err)
	}
	return m, nil
}

func (r memberRepo) Get(ctx context.Context, memberID id.ID) (*domain.Member, error) {
	return r.getOne(ctx, "getting member", `id = $1`, memberID.String())
}

func (r memberRepo) GetByEmail(ctx context.Context, teamID id.ID, email string) (*domain.Member, error) {
	return r.getOne(ctx, "getting member by email", `team_id = $1 AND email = $2`, teamID.String(), email)
}

func (r memberRepo) ListByTeam(ctx context.Context, teamID id.ID) ([]*domain.Member, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+memberColumns+` FROM members WHERE team_id = $1 ORDER BY id`, teamID.String())
	return collect(rows, err, "listing members", scanMember)
}

func (r memberRepo) ListByIDs(ctx context.Context, teamID id.ID, ids []id.ID) ([]*domain.Member, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+memberColumns+` FROM members WHERE team_id = $1 AND id = ANY($2::text[]::uuid[]) ORDER BY id`,
		teamID.String(), id.Strings(ids))
	return collect(rows, err, "listing members by id", scanMember)
}

func (r memberRepo) Update(ctx context.Context, m *domain.Member) error {
	err := r.q.QueryRow(ctx,
		`UPDATE members SET name = $2, email = $3, uid = $4, company = $5, role = $6, type = $7,
			phone_number = $8, avatar_url = $9, is_verified = $10, status = $11, group_id = $12,
			updated_at = now()
		 WHERE id = $1
		 RETURNING updated_at`,
		m.ID.String(), m.Name, m.Email, m.UID, m.Company, m.Role, m.Type,
		m.PhoneNumber, m.AvatarURL, m.IsVerified, string(m.Status), nullableID(m.GroupID),
	).Scan(&m.UpdatedAt)
	return mapErr("updating member", err)
}

func (r memberRepo) SetGroup(ctx context.Context, memberIDs []id.ID, groupID id.ID) error {
	if len(memberIDs) == 0 {
		return nil
	}
	_, err := execAffected(ctx, r.q, "setting member group",
		`UPDATE members SET group_id = $2, updated_at = now() WHERE id = ANY($1::text[]::uuid[])`,
		id.Strings(memberIDs), nullableID(groupID))
	return err
}

func (r memberRepo) ClearGroups(ctx context.Context, groupIDs []id.ID) error {
	if len(groupIDs) == 0 {
		return nil
	}
	_, err := execAffected(ctx, r.q, "clearing member groups",
		`UPDATE members SET group_id = NULL, updated_at = now() WHERE group_id = ANY($1::text[]::uuid[])`,
		id.Strings(groupIDs))
	return err
}

func (r memberRepo) DeleteMany(ctx context.Context, ids []id.ID) (int64, error) {
	return execAffected(ctx, r.q, "deleting members",
		`DELETE FROM members WHERE id = ANY($1::text[]::uuid[])`, id.Strings(ids))
}

func (r memberRepo) DeleteByTeam(ctx context.Context, teamID id.ID) (int64, error) {
	return execAffected(ctx, r.q, "deleting team members",
		`DELETE FROM members WHERE team_id = $1`, teamID.String())
}
