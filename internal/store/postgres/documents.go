package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alecgard/mergeflow/internal/domain"
	"github.com/alecgard/mergeflow/internal/id"
)

const documentColumns = `id, team_id, name, type, size, total_files, is_favorited, show_file, url,
	tags, file_ids, group_ids, shared_with, created_at, updated_at`

type documentRepo struct{ *tx }

func scanDocument(scan func(dest ...any) error) (*domain.Document, error) {
	d := &domain.Document{}
	var files, groups []string
	var sharedWith []byte
	err := scan(&d.ID, &d.TeamID, &d.Name, &d.Type, &d.Size, &d.TotalFiles, &d.IsFavorited, &d.ShowFile,
		&d.URL, &d.Tags, &files, &groups, &sharedWith, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(sharedWith) > 0 {
		if err := json.Unmarshal(sharedWith, &d.SharedWith); err != nil {
			return nil, fmt.Errorf("unmarshaling shared_with: %w", err)
		}
	}
	if d.Tags == nil {
		d.Tags = []string{}
	}
	if d.SharedWith == nil {
		d.SharedWith = []domain.Share{}
	}
	d.Files = id.FromStrings(files)
	d.Groups = id.FromStrings(groups)
	return d, nil
}

func marshalShares(s []domain.Share) ([]byte, error) {
	if s == nil {
		s = []domain.Share{}
	}
	return json.Marshal(s)
}

// shareMatch is a jsonb containment argument matching any grant for a member.
func shareMatch(memberID id.ID) ([]byte, error) {
	return json.Marshal([]map[string]string{{"member": memberID.String()}})
}

func (r documentRepo) Insert(ctx context.Context, d *domain.Document) error {
	shared, err := marshalShares(d.SharedWith)
	if err != nil {
		return fmt.Errorf("marshaling shared_with: %w", err)
	}
	err = r.q.QueryRow(ctx,
		`INSERT INTO documents (id, team_id, name, type, size, total_files, is_favorited, show_file,
			url, tags, file_ids, group_ids, shared_with)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING created_at, updated_at`,
		d.ID.String(), d.TeamID.String(), d.Name, d.Type, d.Size, d.TotalFiles, d.IsFavorited, d.ShowFile,
		d.URL, nonNil(d.Tags), id.Strings(d.Files), id.Strings(d.Groups), shared,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	return mapErr("inserting document", err)
}

func (r documentRepo) Get(ctx context.Context, documentID id.ID) (*domain.Document, error) {
	d, err := scanDocument(func(dest ...any) error {
		return r.q.QueryRow(ctx,
			`SELECT `+documentColumns+` FROM documents WHERE id = $1`+r.forUpdate(),
			documentID.String()).Scan(dest...)
	})
	if err != nil {
		return nil, mapErr("getting document", err)
	}
	return d, nil
}

func (r documentRepo) ListByIDs(ctx context.Context, teamID id.ID, ids []id.ID) ([]*domain.Document, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+documentColumns+` FROM documents
		 WHERE id = ANY($1::text[]::uuid[]) AND ($2::uuid IS NULL OR team_id = $2)
		 ORDER BY id`,
		id.Strings(ids), nullableID(teamID))
	return collect(rows, err, "listing documents by id", scanDocument)
}

func (r documentRepo) ListByTeam(ctx context.Context, teamID id.ID, shownOnly bool) ([]*domain.Document, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+documentColumns+` FROM documents
		 WHERE team_id = $1 AND (NOT $2 OR show_file)
		 ORDER BY id`,
		teamID.String(), shownOnly)
	return collect(rows, err, "listing team documents", scanDocument)
}

func (r documentRepo) URLsInUse(ctx context.Context, urls []string) ([]string, error) {
	rows, err := r.q.Query(ctx, `SELECT DISTINCT url FROM documents WHERE url = ANY($1)`, urls)
	return collect(rows, err, "listing referenced urls", func(scan func(...any) error) (string, error) {
		var u string
		err := scan(&u)
		return u, err
	})
}

func (r documentRepo) ids(ctx context.Context, op, sql string, args ...any) ([]id.ID, error) {
	rows, err := r.q.Query(ctx, sql, args...)
	return collect(rows, err, op, func(scan func(...any) error) (id.ID, error) {
		var v id.ID
		err := scan(&v)
		return v, err
	})
}

func (r documentRepo) SharedWithMember(ctx context.Context, memberID id.ID) ([]id.ID, error) {
	match, err := shareMatch(memberID)
	if err != nil {
		return nil, err
	}
	return r.ids(ctx, "listing documents shared with member",
		`SELECT id FROM documents WHERE shared_with @> $1::jsonb ORDER BY id`, match)
}

func (r documentRepo) SharedWithGroup(ctx context.Context, groupID id.ID) ([]id.ID, error) {
	return r.ids(ctx, "listing documents shared with group",
		`SELECT id FROM documents WHERE group_ids @> ARRAY[$1::text] ORDER BY id`, groupID.String())
}

func (r documentRepo) Update(ctx context.Context, d *domain.Document) error {
	shared, err := marshalShares(d.SharedWith)
	if err != nil {
		return fmt.Errorf("marshaling shared_with: %w", err)
	}
	err = r.q.QueryRow(ctx,
		`UPDATE documents SET name = $2, type = $3, size = $4, total_files = $5, is_favorited = $6,
			show_file = $7, url = $8, tags = $9, file_ids = $10, group_ids = $11, shared_with = $12,
			updated_at = now()
		 WHERE id = $1
		 RETURNING updated_at`,
		d.ID.String(), d.Name, d.Type, d.Size, d.TotalFiles, d.IsFavorited,
		d.ShowFile, d.URL, nonNil(d.Tags), id.Strings(d.Files), id.Strings(d.Groups), shared,
	).Scan(&d.UpdatedAt)
	return mapErr("updating document", err)
}

func (r documentRepo) GrantAll(ctx context.Context, teamID id.ID, share domain.Share) error {
	entry, err := json.Marshal([]domain.Share{share})
	if err != nil {
		return err
	}
	match, err := shareMatch(share.Member)
	if err != nil {
		return err
	}
	_, err = execAffected(ctx, r.q, "granting team documents",
		`UPDATE documents SET shared_with = shared_with || $2::jsonb, updated_at = now()
		 WHERE team_id = $1 AND NOT shared_with @> $3::jsonb`,
		teamID.String(), entry, match)
	return err
}

func (r documentRepo) RemoveMemberShares(ctx context.Context, memberIDs []id.ID) error {
	if len(memberIDs) == 0 {
		return nil
	}
	_, err := execAffected(ctx, r.q, "removing member shares",
		`UPDATE documents
		 SET shared_with = COALESCE(
		       (SELECT jsonb_agg(e ORDER BY n) FROM jsonb_array_elements(shared_with) WITH ORDINALITY AS s(e, n)
		        WHERE e->>'member' <> ALL($1::text[])),
		       '[]'::jsonb),
		     updated_at = now()
		 WHERE EXISTS (SELECT 1 FROM jsonb_array_elements(shared_with) e WHERE e->>'member' = ANY($1::text[]))`,
		id.Strings(memberIDs))
	return err
}

func (r documentRepo) RemoveGroups(ctx context.Context, groupIDs []id.ID) error {
	if len(groupIDs) == 0 {
		return nil
	}
	_, err := execAffected(ctx, r.q, "removing groups from documents",
		`UPDATE documents
		 SET group_ids = ARRAY(SELECT g FROM unnest(group_ids) WITH ORDINALITY AS u(g, n)
		                       WHERE g <> ALL($1::text[]) ORDER BY n),
		     updated_at = now()
		 WHERE group_ids && $1::text[]`,
		id.Strings(groupIDs))
	return err
}

func (r documentRepo) DeleteMany(ctx context.Context, ids []id.ID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return execAffected(ctx, r.q, "deleting documents",
		`DELETE FROM documents WHERE id = ANY($1::text[]::uuid[])`, id.Strings(ids))
}

func (r documentRepo) DeleteByTeam(ctx context.Context, teamID id.ID) (int64, error) {
	return execAffected(ctx, r.q, "deleting team documents",
		`DELETE FROM documents WHERE team_id = $1`, teamID.String())
}
