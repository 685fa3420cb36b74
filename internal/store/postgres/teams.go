package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alecgard/mergeflow/internal/domain"
	"github.com/alecgard/mergeflow/internal/id"
)

const teamColumns = `id, company_name, owner_id, owner_email, owner_role, owner_type,
	shared, doc_shared, group_ids, member_ids, document_ids, created_at, updated_at`

type teamRepo struct{ *tx }

func scanTeam(scan func(dest ...any) error) (*domain.Team, error) {
	t := &domain.Team{}
	var docShared []byte
	var groups, members, documents []string
	err := scan(&t.ID, &t.CompanyName, &t.OwnerID, &t.OwnerEmail, &t.OwnerRole, &t.OwnerType,
		&t.Shared, &docShared, &groups, &members, &documents, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(docShared) > 0 {
		if err := json.Unmarshal(docShared, &t.DocShared); err != nil {
			return nil, fmt.Errorf("unmarshaling doc_shared: %w", err)
		}
	}
	if t.Shared == nil {
		t.Shared = []string{}
	}
	if t.DocShared == nil {
		t.DocShared = []domain.PendingShare{}
	}
	t.Groups = id.FromStrings(groups)
	t.Members = id.FromStrings(members)
	t.Documents = id.FromStrings(documents)
	return t, nil
}

func marshalPending(p []domain.PendingShare) ([]byte, error) {
	if p == nil {
		p = []domain.PendingShare{}
	}
	return json.Marshal(p)
}

func nonNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

func (r teamRepo) Insert(ctx context.Context, t *domain.Team) error {
	docShared, err := marshalPending(t.DocShared)
	if err != nil {
		return fmt.Errorf("marshaling doc_shared: %w", err)
	}
	err = r.q.QueryRow(ctx,
		`INSERT INTO teams (id, company_name, owner_id, owner_email, owner_role, owner_type,
			shared, doc_shared, group_ids, member_ids, document_ids)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING created_at, updated_at`,
		t.ID.String(), t.CompanyName, t.OwnerID, t.OwnerEmail, t.OwnerRole, t.OwnerType,
		nonNil(t.Shared), docShared, id.Strings(t.Groups), id.Strings(t.Members), id.Strings(t.Documents),
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	return mapErr("inserting team", err)
}

func (r teamRepo) getOne(ctx context.Context, op, where string, args ...any) (*domain.Team, error) {
	t, err := scanTeam(func(dest ...any) error {
		return r.q.QueryRow(ctx, `SELECT `+teamColumns+` FROM teams WHERE `+where+r.forUpdate(), args...).Scan(dest...)
	})
	if err != nil {
		return nil, mapErr(op, err)
	}
	return t, nil
}

func (r teamRepo) Get(ctx context.Context, teamID id.ID) (*domain.Team, error) {
	return r.getOne(ctx, "getting team", `id = $1`, teamID.String())
}

func (r teamRepo) GetByCompanyName(ctx context.Context, name string) (*domain.Team, error) {
	return r.getOne(ctx, "getting team by company name", `company_name = $1`, name)
}

func (r teamRepo) FindByOwnerDomain(ctx context.Context, d string) (*domain.Team, error) {
	return r.getOne(ctx, "finding team by owner domain",
		`lower(split_part(owner_email, '@', 2)) = lower($1) ORDER BY id LIMIT 1`, d)
}

func (r teamRepo) List(ctx context.Context) ([]*domain.Team, error) {
	rows, err := r.q.Query(ctx, `SELECT `+teamColumns+` FROM teams ORDER BY id`)
	return collect(rows, err, "listing teams", scanTeam)
}

func (r teamRepo) Update(ctx context.Context, t *domain.Team) error {
	docShared, err := marshalPending(t.DocShared)
	if err != nil {
		return fmt.Errorf("marshaling doc_shared: %w", err)
	}
	err = r.q.QueryRow(ctx,
		`UPDATE teams SET company_name = $2, owner_id = $3, owner_email = $4, owner_role = $5,
			owner_type = $6, shared = $7, doc_shared = $8, group_ids = $9, member_ids = $10,
			document_ids = $11, updated_at = now()
		 WHERE id = $1
		 RETURNING updated_at`,
		t.ID.String(), t.CompanyName, t.OwnerID, t.OwnerEmail, t.OwnerRole, t.OwnerType,
		nonNil(t.Shared), docShared, id.Strings(t.Groups), id.Strings(t.Members), id.Strings(t.Documents),
	).Scan(&t.UpdatedAt)
	return mapErr("updating team", err)
}

func (r teamRepo) Delete(ctx context.Context, teamID id.ID) error {
	return requireRow(ctx, r.q, "deleting team", `DELETE FROM teams WHERE id = $1`, teamID.String())
}
