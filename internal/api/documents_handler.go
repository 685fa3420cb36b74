package api

import (
	"net/http"

	"github.com/alecgard/mergeflow/internal/document"
	"github.com/alecgard/mergeflow/internal/domain"
	"github.com/alecgard/mergeflow/internal/team"
)

// documentsHandler groups document store HTTP handlers.
type documentsHandler struct {
	documents      *document.Service
	invitationLink string
}

func newDocumentsHandler(documents *document.Service, invitationLink string) *documentsHandler {
	return &documentsHandler{documents: documents, invitationLink: invitationLink}
}

type fileRequest struct {
	Name string `json:"name" validate:"required"`
	Size int64  `json:"size" validate:"min=0"`
	URL  string `json:"url" validate:"required"`
	Type string `json:"type" validate:"required"`
}

type uploadRequest struct {
	TeamID   string        `json:"teamId" validate:"required,uuid"`
	Files    []fileRequest `json:"files" validate:"required,min=1,dive"`
	ShowFile bool          `json:"showFile"`
}

type uploadURLRequest struct {
	TeamID      string `json:"teamId" validate:"required,uuid"`
	FileName    string `json:"fileName" validate:"required"`
	ContentType string `json:"contentType"`
}

type folderRequest struct {
	TeamID      string   `json:"teamId" validate:"required,uuid"`
	Name        string   `json:"name" validate:"required"`
	URL         string   `json:"url"`
	DocumentIDs []string `json:"documentIds" validate:"dive,uuid"`
	TotalSize   int64    `json:"totalSize" validate:"min=0"`
}

func (f folderRequest) batch() document.Batch {
	return document.Batch{DocumentIDs: bodyIDs(f.DocumentIDs), TotalSize: f.TotalSize}
}

type shareRequest struct {
	TeamID         string `json:"teamId" validate:"required,uuid"`
	GroupID        string `json:"groupId" validate:"omitempty,uuid"`
	UserEmail      string `json:"userEmail" validate:"omitempty,email"`
	InvitationLink string `json:"invitationLink"`
}

type permissionRequest struct {
	TeamID     string `json:"teamId" validate:"required,uuid"`
	MemberID   string `json:"memberId" validate:"required,uuid"`
	Permission string `json:"permission" validate:"required"`
}

type favoriteRequest struct {
	TeamID      string `json:"teamId" validate:"omitempty,uuid"`
	IsFavorited bool   `json:"isFavorited"`
}

type tagsRequest struct {
	TeamID string   `json:"teamId" validate:"omitempty,uuid"`
	Tags   []string `json:"tags" validate:"required"`
}

type deleteDocumentsRequest struct {
	TeamID      string   `json:"teamId" validate:"required,uuid"`
	DocumentIDs []string `json:"documentIds" validate:"required,min=1,dive,uuid"`
}

// List handles GET /api/documents?teamId=&userEmail=.
func (h *documentsHandler) List(w http.ResponseWriter, r *http.Request) {
	teamID, err := queryID(r, "teamId", team.ErrNotFound)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	email := r.URL.Query().Get("userEmail")
	if email == "" {
		writeServiceError(w, r, domain.Validationf("userEmail is required"), "")
		return
	}
	docs, err := h.documents.ListForTeam(r.Context(), teamID, email)
	if err != nil {
		writeServiceError(w, r, err, "failed to list documents")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// Upload handles POST /api/documents/upload.
func (h *documentsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	files := make([]document.FileInput, 0, len(req.Files))
	for _, f := range req.Files {
		files = append(files, document.FileInput{Name: f.Name, Size: f.Size, URL: f.URL, Type: f.Type})
	}
	batch, err := h.documents.UploadFiles(r.Context(), bodyID(req.TeamID), files, req.ShowFile)
	if err != nil {
		writeServiceError(w, r, err, "failed to upload files")
		return
	}
	writeJSON(w, http.StatusCreated, batch)
}

// UploadURL handles POST /api/documents/upload-url.
func (h *documentsHandler) UploadURL(w http.ResponseWriter, r *http.Request) {
	var req uploadURLRequest
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	up, err := h.documents.PresignUpload(r.Context(), bodyID(req.TeamID), req.FileName, req.ContentType)
	if err != nil {
		writeServiceError(w, r, err, "failed to presign upload")
		return
	}
	writeJSON(w, http.StatusCreated, up)
}

// CreateFolder handles POST /api/documents/create.
func (h *documentsHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var req folderRequest
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	doc, err := h.documents.CreateFolder(r.Context(), bodyID(req.TeamID), req.Name, req.URL, req.batch())
	if err != nil {
		writeServiceError(w, r, err, "failed to create folder")
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

// Get handles GET /api/documents/{documentId}. teamId is optional.
func (h *documentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	docID, err := pathID(r, "documentId", document.ErrNotFound)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	teamID, err := optionalQueryID(r, "teamId", document.ErrNotFound)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	doc, err := h.documents.Get(r.Context(), docID, teamID)
	if err != nil {
		writeServiceError(w, r, err, "failed to get document")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// AppendToFolder handles PUT /api/documents/{documentId}/edit.
func (h *documentsHandler) AppendToFolder(w http.ResponseWriter, r *http.Request) {
	docID, err := pathID(r, "documentId", document.ErrNotFound)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	var req folderRequest
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	doc, err := h.documents.AppendToFolder(r.Context(), docID, bodyID(req.TeamID), req.Name, req.batch())
	if err != nil {
		writeServiceError(w, r, err, "failed to update folder")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// Share handles PUT /api/documents/{documentId}/share.
func (h *documentsHandler) Share(w http.ResponseWriter, r *http.Request) {
	docID, err := pathID(r, "documentId", document.ErrNotFound)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	var req shareRequest
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	link := req.InvitationLink
	if link == "" {
		link = h.invitationLink
	}
	res, err := h.documents.Share(r.Context(), docID, bodyID(req.TeamID), document.ShareInput{
		GroupID:        bodyID(req.GroupID),
		UserEmail:      req.UserEmail,
		InvitationLink: link,
	})
	if err != nil {
		writeServiceError(w, r, err, "failed to share document")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// UpdatePermission handles PUT /api/documents/{documentId}/permission.
func (h *documentsHandler) UpdatePermission(w http.ResponseWriter, r *http.Request) {
	docID, err := pathID(r, "documentId", document.ErrNotFound)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	var req permissionRequest
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	doc, err := h.documents.UpdatePermission(r.Context(), docID, bodyID(req.TeamID), bodyID(req.MemberID), domain.Permission(req.Permission))
	if err != nil {
		writeServiceError(w, r, err, "failed to update permission")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// SetFavorite handles PUT /api/documents/{documentId}/favorite.
func (h *documentsHandler) SetFavorite(w http.ResponseWriter, r *http.Request) {
	docID, err := pathID(r, "documentId", document.ErrNotFound)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	var req favoriteRequest
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	doc, err := h.documents.SetFavorite(r.Context(), docID, bodyID(req.TeamID), req.IsFavorited)
	if err != nil {
		writeServiceError(w, r, err, "failed to update document")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// SetTags handles PUT /api/documents/{documentId}/tags.
func (h *documentsHandler) SetTags(w http.ResponseWriter, r *http.Request) {
	docID, err := pathID(r, "documentId", document.ErrNotFound)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	var req tagsRequest
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	doc, err := h.documents.SetTags(r.Context(), docID, bodyID(req.TeamID), req.Tags)
	if err != nil {
		writeServiceError(w, r, err, "failed to update tags")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// RevokeAccess handles DELETE /api/documents/{documentId}/revoke.
func (h *documentsHandler) RevokeAccess(w http.ResponseWriter, r *http.Request) {
	docID, err := pathID(r, "documentId", document.ErrNotFound)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	var req shareRequest
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	doc, err := h.documents.RevokeAccess(r.Context(), docID, bodyID(req.TeamID), document.RevokeInput{
		GroupID:   bodyID(req.GroupID),
		UserEmail: req.UserEmail,
	})
	if err != nil {
		writeServiceError(w, r, err, "failed to revoke access")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// Delete handles DELETE /api/documents/{documentId}?teamId=&folderId=.
func (h *documentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	docID, err := pathID(r, "documentId", document.ErrNotFound)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	teamID, err := queryID(r, "teamId", document.ErrNotFound)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	folderID, err := optionalQueryID(r, "folderId", document.ErrNotFound)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	if err := h.documents.Delete(r.Context(), docID, teamID, folderID); err != nil {
		writeServiceError(w, r, err, "failed to delete document")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deletedCount": 1})
}

// DeleteMany handles DELETE /api/documents.
func (h *documentsHandler) DeleteMany(w http.ResponseWriter, r *http.Request) {
	var req deleteDocumentsRequest
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	n, err := h.documents.DeleteMany(r.Context(), bodyIDs(req.DocumentIDs), bodyID(req.TeamID))
	if err != nil {
		writeServiceError(w, r, err, "failed to delete documents")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deletedCount": n})
}
