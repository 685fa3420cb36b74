// Package document manages files and folders and who may see them.
package document

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/alecgard/mergeflow/internal/audit"
	"github.com/alecgard/mergeflow/internal/domain"
	"github.com/alecgard/mergeflow/internal/id"
	"github.com/alecgard/mergeflow/internal/invite"
	"github.com/alecgard/mergeflow/internal/objects"
	"github.com/alecgard/mergeflow/internal/store"
)

const DefaultMaxTags = 5

var (
	ErrFilesRequired       = domain.Validationf("At least one file is required.")
	ErrFileInvalid         = domain.Validationf("Each file needs a name, url, type and a non-negative size.")
	ErrNameRequired        = domain.Validationf("Folder name is required.")
	ErrDocumentIDsRequired = domain.Validationf("Document ids are required.")
	ErrShareTargetRequired = domain.Validationf("A groupId or userEmail is required.")
	ErrNotFolder           = domain.Validationf("Document is not a folder.")
	ErrNestedFolder        = domain.Validationf("Folders cannot contain folders.")
	ErrMemberNotInTeam     = domain.Validationf("Member does not exist.")
	ErrPermissionInvalid   = domain.Conflictf("Invalid permission. Permission must be 'view' or 'edit'.")
	ErrShareNotFound       = domain.NotFoundf("User does not have access to this document.")
	ErrUserNotFound        = domain.NotFoundf("User not found.")
	ErrDocumentsNotFound   = domain.NotFoundf("Documents not found.")
	ErrNotFound            = domain.NotFoundf("Document not found.")
	ErrStorageDisabled     = domain.Unavailablef("Object storage is not configured.")
)

// Inviter sends one invitation email.
type Inviter interface {
	Send(ctx context.Context, email, invitationLink string) invite.Result
}

// ObjectStore holds the file bytes behind document URLs.
type ObjectStore interface {
	PresignUpload(ctx context.Context, teamID id.ID, fileName, contentType string) (*objects.Upload, error)
	Remove(ctx context.Context, teamID id.ID, url string) error
}

type Service struct {
	store   store.Store
	invites Inviter
	objects ObjectStore
	audit   audit.Recorder
	maxTags int
}

// NewService wires the document store. objects may be nil, which disables
// presigned uploads and object cleanup.
func NewService(st store.Store, invites Inviter, objects ObjectStore, rec audit.Recorder, maxTags int) *Service {
	if rec == nil {
		rec = audit.Discard
	}
	if maxTags <= 0 {
		maxTags = DefaultMaxTags
	}
	return &Service{store: st, invites: invites, objects: objects, audit: rec, maxTags: maxTags}
}

// UploadFiles records one document per file and appends them to the team.
func (s *Service) UploadFiles(ctx context.Context, teamID id.ID, files []FileInput, showFile bool) (*Batch, error) {
	if len(files) == 0 {
		return nil, ErrFilesRequired
	}
	docs := make([]*domain.Document, 0, len(files))
	batch := &Batch{DocumentIDs: make([]id.ID, 0, len(files))}
	for _, f := range files {
		if strings.TrimSpace(f.Name) == "" || f.URL == "" || f.Type == "" || f.Size < 0 {
			return nil, ErrFileInvalid
		}
		d := newDocument(teamID, f.Name, f.Type)
		d.Size, d.URL, d.ShowFile = f.Size, f.URL, showFile
		docs = append(docs, d)
		batch.DocumentIDs = append(batch.DocumentIDs, d.ID)
		batch.TotalSize += f.Size
	}

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		team, err := store.LoadTeam(ctx, tx, teamID)
		if err != nil {
			return err
		}
		for _, d := range docs {
			if err := tx.Documents().Insert(ctx, d); err != nil {
				return fmt.Errorf("creating document: %w", err)
			}
		}
		team.Documents = id.Add(team.Documents, batch.DocumentIDs...)
		if err := tx.Teams().Update(ctx, team); err != nil {
			return fmt.Errorf("adding documents to team: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		s.audit.Record(audit.New(teamID, audit.DocumentUploaded, d.ID, d.Name))
	}
	return batch, nil
}

// CreateFolder wraps an uploaded batch in a new visible folder.
func (s *Service) CreateFolder(ctx context.Context, teamID id.ID, name, url string, batch Batch) (*domain.Document, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	files := id.Unique(batch.DocumentIDs)
	folder := newDocument(teamID, name, domain.TypeFolder)
	folder.URL = url
	folder.Files = files
	folder.TotalFiles = len(files)
	folder.ShowFile = true

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		team, err := store.LoadTeam(ctx, tx, teamID)
		if err != nil {
			return err
		}
		size, err := ensureTeamFiles(ctx, tx, teamID, files)
		if err != nil {
			return err
		}
		folder.Size = size
		if err := tx.Documents().Insert(ctx, folder); err != nil {
			return fmt.Errorf("creating folder: %w", err)
		}
		team.Documents = id.Add(team.Documents, folder.ID)
		if err := tx.Teams().Update(ctx, team); err != nil {
			return fmt.Errorf("adding folder to team: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(audit.New(teamID, audit.FolderCreated, folder.ID, folder.Name))
	return folder, nil
}

// AppendToFolder renames the folder and adds a batch to it.
func (s *Service) AppendToFolder(ctx context.Context, documentID, teamID id.ID, name string, batch Batch) (*domain.Document, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	var folder *domain.Document
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := store.LoadTeam(ctx, tx, teamID); err != nil {
			return err
		}
		var err error
		if folder, err = store.LoadDocument(ctx, tx, documentID, teamID); err != nil {
			return err
		}
		if !folder.IsFolder() {
			return ErrNotFolder
		}
		added := id.Remove(id.Unique(batch.DocumentIDs), folder.Files...)
		size, err := ensureTeamFiles(ctx, tx, teamID, added)
		if err != nil {
			return err
		}
		folder.Name = name
		folder.Size += size
		folder.Files = id.Add(folder.Files, added...)
		folder.TotalFiles = len(folder.Files)
		if err := tx.Documents().Update(ctx, folder); err != nil {
			return fmt.Errorf("updating folder: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(audit.New(teamID, audit.FolderAppended, folder.ID, folder.Name))
	return folder, nil
}

// ListForTeam returns the documents requesterEmail may list. The owner sees
// every shown document; a member sees the shown documents shared with it or
// with its group.
func (s *Service) ListForTeam(ctx context.Context, teamID id.ID, requesterEmail string) ([]*domain.DocumentView, error) {
	var views []*domain.DocumentView
	err := s.store.View(ctx, func(tx store.Tx) error {
		team, err := store.LoadTeam(ctx, tx, teamID)
		if err != nil {
			return err
		}
		docs, err := tx.Documents().ListByTeam(ctx, teamID, true)
		if err != nil {
			return fmt.Errorf("listing documents: %w", err)
		}

		if !team.IsOwner(requesterEmail) {
			email, err := domain.NormalizeEmail(requesterEmail)
			if err != nil {
				return err
			}
			m, err := store.FindMemberByEmail(ctx, tx, teamID, email)
			if err != nil {
				return err
			}
			if m == nil {
				return ErrMemberNotInTeam
			}
			visible := docs[:0]
			for _, d := range docs {
				if d.VisibleTo(m) {
					visible = append(visible, d)
				}
			}
			docs = visible
		}

		r, err := newResolver(ctx, tx, teamID)
		if err != nil {
			return err
		}
		views = make([]*domain.DocumentView, 0, len(docs))
		for _, d := range docs {
			views = append(views, r.view(d))
		}
		return nil
	})
	return views, err
}

// Get returns one document with its children and references resolved. A
// zero teamID skips the ownership check.
func (s *Service) Get(ctx context.Context, documentID, teamID id.ID) (*domain.DocumentView, error) {
	var v *domain.DocumentView
	err := s.store.View(ctx, func(tx store.Tx) error {
		d, err := store.LoadDocument(ctx, tx, documentID, teamID)
		if err != nil {
			return err
		}
		r, err := newResolver(ctx, tx, d.TeamID)
		if err != nil {
			return err
		}
		v = r.view(d)
		if d.IsFolder() && len(d.Files) > 0 {
			v.Children, err = tx.Documents().ListByIDs(ctx, d.TeamID, d.Files)
			if err != nil {
				return fmt.Errorf("loading folder contents: %w", err)
			}
		}
		return nil
	})
	return v, err
}

// Share grants a group and/or a member access. An email without a member
// becomes a pending share on the team and is invited after commit.
func (s *Service) Share(ctx context.Context, documentID, teamID id.ID, in ShareInput) (*ShareResult, error) {
	if in.GroupID.IsZero() && strings.TrimSpace(in.UserEmail) == "" {
		return nil, ErrShareTargetRequired
	}
	var email string
	if strings.TrimSpace(in.UserEmail) != "" {
		var err error
		if email, err = domain.NormalizeEmail(in.UserEmail); err != nil {
			return nil, err
		}
	}

	res := &ShareResult{}
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		team, err := store.LoadTeam(ctx, tx, teamID)
		if err != nil {
			return err
		}
		doc, err := store.LoadDocument(ctx, tx, documentID, teamID)
		if err != nil {
			return err
		}

		if !in.GroupID.IsZero() {
			if _, err := store.LoadGroup(ctx, tx, in.GroupID, teamID); err != nil {
				return err
			}
			doc.Groups = id.Add(doc.Groups, in.GroupID)
		}

		if email != "" {
			m, err := store.FindMemberByEmail(ctx, tx, teamID, email)
			if err != nil {
				return err
			}
			if m != nil {
				doc.Grant(m.ID, domain.PermissionView)
			} else {
				res.Pending = true
				if team.AddPending(domain.PendingShare{Email: email, DocID: doc.ID}) {
					if err := tx.Teams().Update(ctx, team); err != nil {
						return fmt.Errorf("recording pending share: %w", err)
					}
				}
			}
		}

		if err := tx.Documents().Update(ctx, doc); err != nil {
			return fmt.Errorf("updating document: %w", err)
		}
		res.Document = doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(audit.New(teamID, audit.DocumentShared, documentID, shareDetail(in.GroupID, email)))

	if res.Pending && in.InvitationLink != "" && s.invites != nil {
		res.InviteSent = s.invites.Send(ctx, email, in.InvitationLink).Success
	}
	return res, nil
}

// RevokeAccess removes a group and/or a member grant. Revoking an email that
// only has a pending share drops the pending share.
func (s *Service) RevokeAccess(ctx context.Context, documentID, teamID id.ID, in RevokeInput) (*domain.Document, error) {
	if in.GroupID.IsZero() && strings.TrimSpace(in.UserEmail) == "" {
		return nil, ErrShareTargetRequired
	}
	var email string
	if strings.TrimSpace(in.UserEmail) != "" {
		var err error
		if email, err = domain.NormalizeEmail(in.UserEmail); err != nil {
			return nil, err
		}
	}

	var doc *domain.Document
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		team, err := store.LoadTeam(ctx, tx, teamID)
		if err != nil {
			return err
		}
		if doc, err = store.LoadDocument(ctx, tx, documentID, teamID); err != nil {
			return err
		}

		if !in.GroupID.IsZero() {
			if _, err := store.LoadGroup(ctx, tx, in.GroupID, teamID); err != nil {
				return err
			}
			doc.Groups = id.Remove(doc.Groups, in.GroupID)
		}

		if email != "" {
			m, err := store.FindMemberByEmail(ctx, tx, teamID, email)
			if err != nil {
				return err
			}
			switch {
			case m != nil:
				doc.Revoke(m.ID)
			case dropPending(team, email, doc.ID):
				if err := tx.Teams().Update(ctx, team); err != nil {
					return fmt.Errorf("dropping pending share: %w", err)
				}
			default:
				return ErrUserNotFound
			}
		}

		if err := tx.Documents().Update(ctx, doc); err != nil {
			return fmt.Errorf("updating document: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(audit.New(teamID, audit.DocumentRevoked, documentID, shareDetail(in.GroupID, email)))
	return doc, nil
}

// UpdatePermission changes an existing direct grant. It never creates one.
func (s *Service) UpdatePermission(ctx context.Context, documentID, teamID, memberID id.ID, p domain.Permission) (*domain.Document, error) {
	if !p.Valid() {
		return nil, ErrPermissionInvalid
	}
	var doc *domain.Document
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := store.LoadTeam(ctx, tx, teamID); err != nil {
			return err
		}
		var err error
		if doc, err = store.LoadDocument(ctx, tx, documentID, teamID); err != nil {
			return err
		}
		i := doc.ShareIndex(memberID)
		if i < 0 {
			return ErrShareNotFound
		}
		if doc.SharedWith[i].Permission == p {
			return nil
		}
		doc.SharedWith[i].Permission = p
		if err := tx.Documents().Update(ctx, doc); err != nil {
			return fmt.Errorf("updating permission: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(audit.New(teamID, audit.PermissionChanged, documentID, memberID.String()+"="+string(p)))
	return doc, nil
}

// SetFavorite sets the favorite flag. A zero teamID skips the ownership check.
func (s *Service) SetFavorite(ctx context.Context, documentID, teamID id.ID, favorite bool) (*domain.Document, error) {
	return s.modify(ctx, documentID, teamID, func(d *domain.Document) error {
		d.IsFavorited = favorite
		return nil
	})
}

// SetTags replaces the tags after trimming and de-duplicating them.
func (s *Service) SetTags(ctx context.Context, documentID, teamID id.ID, tags []string) (*domain.Document, error) {
	tags = domain.NormalizeTags(tags)
	if len(tags) > s.maxTags {
		return nil, domain.Conflictf("Only %d tags can be selected.", s.maxTags)
	}
	return s.modify(ctx, documentID, teamID, func(d *domain.Document) error {
		d.Tags = tags
		return nil
	})
}

func (s *Service) modify(ctx context.Context, documentID, teamID id.ID, fn func(*domain.Document) error) (*domain.Document, error) {
	var doc *domain.Document
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		if doc, err = store.LoadDocument(ctx, tx, documentID, teamID); err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
		if err := tx.Documents().Update(ctx, doc); err != nil {
			return fmt.Errorf("updating document: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(audit.New(doc.TeamID, audit.DocumentUpdated, doc.ID, ""))
	return doc, nil
}

// Delete removes a document, and a folder's children with it. Every folder
// that listed a removed file shrinks. A non-zero folderID must name a folder
// of the team.
func (s *Service) Delete(ctx context.Context, documentID, teamID, folderID id.ID) error {
	var removed []*domain.Document
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		team, err := store.LoadTeam(ctx, tx, teamID)
		if err != nil {
			return err
		}
		doc, err := store.LoadDocument(ctx, tx, documentID, teamID)
		if err != nil {
			return err
		}
		removed = append(removed, doc)

		if doc.IsFolder() && len(doc.Files) > 0 {
			children, err := tx.Documents().ListByIDs(ctx, teamID, doc.Files)
			if err != nil {
				return fmt.Errorf("loading folder contents: %w", err)
			}
			if _, err := tx.Documents().DeleteMany(ctx, doc.Files); err != nil {
				return fmt.Errorf("deleting folder contents: %w", err)
			}
			team.Documents = id.Remove(team.Documents, doc.Files...)
			removed = append(removed, children...)
		}

		if !folderID.IsZero() && folderID != doc.ID {
			folder, err := store.LoadDocument(ctx, tx, folderID, teamID)
			if err != nil {
				return err
			}
			if !folder.IsFolder() {
				return ErrNotFolder
			}
		}

		if _, err := tx.Documents().DeleteMany(ctx, []id.ID{doc.ID}); err != nil {
			return fmt.Errorf("deleting document: %w", err)
		}
		if err := detachFromFolders(ctx, tx, teamID, removed); err != nil {
			return err
		}
		team.Documents = id.Remove(team.Documents, doc.ID)
		if err := tx.Teams().Update(ctx, team); err != nil {
			return fmt.Errorf("removing documents from team: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.audit.Record(audit.New(teamID, audit.DocumentDeleted, documentID, ""))
	s.removeObjects(ctx, removed)
	return nil
}

// DeleteMany removes the listed documents of the team along with the
// children of any folder among them.
func (s *Service) DeleteMany(ctx context.Context, documentIDs []id.ID, teamID id.ID) (int64, error) {
	if len(documentIDs) == 0 {
		return 0, ErrDocumentIDsRequired
	}
	var removed []*domain.Document
	var n int64
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		team, err := store.LoadTeam(ctx, tx, teamID)
		if err != nil {
			return err
		}
		docs, err := tx.Documents().ListByIDs(ctx, teamID, documentIDs)
		if err != nil {
			return fmt.Errorf("loading documents: %w", err)
		}
		if len(docs) == 0 {
			return ErrDocumentsNotFound
		}

		var selected, childIDs []id.ID
		for _, d := range docs {
			selected = append(selected, d.ID)
			if d.IsFolder() {
				childIDs = id.Add(childIDs, d.Files...)
			}
		}
		childIDs = id.Remove(childIDs, selected...)
		if len(childIDs) > 0 {
			children, err := tx.Documents().ListByIDs(ctx, teamID, childIDs)
			if err != nil {
				return fmt.Errorf("loading folder contents: %w", err)
			}
			if _, err := tx.Documents().DeleteMany(ctx, childIDs); err != nil {
				return fmt.Errorf("deleting folder contents: %w", err)
			}
			removed = append(removed, children...)
		}
		if n, err = tx.Documents().DeleteMany(ctx, selected); err != nil {
			return fmt.Errorf("deleting documents: %w", err)
		}
		removed = append(removed, docs...)
		if err := detachFromFolders(ctx, tx, teamID, removed); err != nil {
			return err
		}

		team.Documents = id.Remove(team.Documents, append(childIDs, selected...)...)
		if err := tx.Teams().Update(ctx, team); err != nil {
			return fmt.Errorf("removing documents from team: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, d := range removed {
		s.audit.Record(audit.New(teamID, audit.DocumentDeleted, d.ID, ""))
	}
	s.removeObjects(ctx, removed)
	return n, nil
}

// PresignUpload returns a URL the client can PUT file bytes to.
func (s *Service) PresignUpload(ctx context.Context, teamID id.ID, fileName, contentType string) (*objects.Upload, error) {
	if s.objects == nil {
		return nil, ErrStorageDisabled
	}
	if strings.TrimSpace(fileName) == "" {
		return nil, ErrFileInvalid
	}
	err := s.store.View(ctx, func(tx store.Tx) error {
		_, err := store.LoadTeam(ctx, tx, teamID)
		return err
	})
	if err != nil {
		return nil, err
	}
	up, err := s.objects.PresignUpload(ctx, teamID, fileName, contentType)
	if err != nil {
		return nil, fmt.Errorf("presigning upload: %w", err)
	}
	return up, nil
}

// removeObjects deletes stored bytes of removed documents. A URL still held
// by a surviving document is kept. Failures are logged; the records are
// already gone.
func (s *Service) removeObjects(ctx context.Context, docs []*domain.Document) {
	if s.objects == nil {
		return
	}
	var urls []string
	for _, d := range docs {
		if d.URL != "" && !d.IsFolder() {
			urls = append(urls, d.URL)
		}
	}
	if len(urls) == 0 {
		return
	}
	var inUse []string
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		inUse, err = tx.Documents().URLsInUse(ctx, urls)
		return err
	})
	if err != nil {
		slog.Warn("checking stored object references", "error", err)
		return
	}

	done := make(map[string]bool, len(urls))
	for _, d := range docs {
		if d.URL == "" || d.IsFolder() || done[d.URL] || slices.Contains(inUse, d.URL) {
			continue
		}
		done[d.URL] = true
		if err := s.objects.Remove(ctx, d.TeamID, d.URL); err != nil {
			slog.Warn("removing stored object", "document_id", d.ID, "url", d.URL, "error", err)
		}
	}
}

// RemoveObjects is used by team deletion for documents it removed.
func (s *Service) RemoveObjects(ctx context.Context, docs []*domain.Document) {
	s.removeObjects(ctx, docs)
}

// detachFromFolders pulls gone documents out of the surviving folders of the
// team, shrinking their size and file count.
func detachFromFolders(ctx context.Context, tx store.Tx, teamID id.ID, gone []*domain.Document) error {
	sizes := make(map[id.ID]int64, len(gone))
	for _, d := range gone {
		sizes[d.ID] = d.Size
	}
	docs, err := tx.Documents().ListByTeam(ctx, teamID, false)
	if err != nil {
		return fmt.Errorf("loading folders: %w", err)
	}
	for _, folder := range docs {
		if !folder.IsFolder() {
			continue
		}
		var shrink int64
		keep := make([]id.ID, 0, len(folder.Files))
		for _, c := range folder.Files {
			if size, ok := sizes[c]; ok {
				shrink += size
				continue
			}
			keep = append(keep, c)
		}
		if len(keep) == len(folder.Files) {
			continue
		}
		folder.Files = keep
		folder.TotalFiles = len(keep)
		folder.Size = max(folder.Size-shrink, 0)
		if err := tx.Documents().Update(ctx, folder); err != nil {
			return fmt.Errorf("updating folder: %w", err)
		}
	}
	return nil
}

// ensureTeamFiles checks that ids are files of the team and returns their
// total size.
func ensureTeamFiles(ctx context.Context, tx store.Tx, teamID id.ID, ids []id.ID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	docs, err := tx.Documents().ListByIDs(ctx, teamID, ids)
	if err != nil {
		return 0, fmt.Errorf("loading documents: %w", err)
	}
	if len(docs) != len(ids) {
		return 0, ErrDocumentsNotFound
	}
	var size int64
	for _, d := range docs {
		if d.IsFolder() {
			return 0, ErrNestedFolder
		}
		size += d.Size
	}
	return size, nil
}

func dropPending(team *domain.Team, email string, docID id.ID) bool {
	n := len(team.DocShared)
	kept := team.DocShared[:0:0]
	for _, p := range team.DocShared {
		if p.Email == email && p.DocID == docID {
			continue
		}
		kept = append(kept, p)
	}
	team.DocShared = kept
	return len(kept) != n
}

func newDocument(teamID id.ID, name, typ string) *domain.Document {
	return &domain.Document{
		ID:         id.New(),
		TeamID:     teamID,
		Name:       strings.TrimSpace(name),
		Type:       typ,
		Tags:       []string{},
		Files:      []id.ID{},
		Groups:     []id.ID{},
		SharedWith: []domain.Share{},
	}
}

func shareDetail(groupID id.ID, email string) string {
	switch {
	case !groupID.IsZero() && email != "":
		return "group=" + groupID.String() + " email=" + email
	case !groupID.IsZero():
		return "group=" + groupID.String()
	default:
		return "email=" + email
	}
}
