package api

import (
	"errors"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/rosterhq/roster/pkg/auth"
	"github.com/rosterhq/roster/pkg/httputil"
	"github.com/rosterhq/roster/pkg/middleware"
	"github.com/rosterhq/roster/pkg/orgs"
	"github.com/rosterhq/roster/pkg/storage"
)

// maxAvatarSize caps avatar uploads at 5 MiB
const maxAvatarSize = 5 << 20

type avatarResponse struct {
	AvatarURL string `json:"avatar_url"`
}

// UploadMyAvatar replaces the caller's avatar with the request body
func (s *Server) UploadMyAvatar(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)

	url, ok := s.storeAvatar(w, r, storage.KindUser, user.ID)
	if !ok {
		return
	}

	if err := s.auth.UpdateUser(user.ID, &auth.UpdateUserRequest{AvatarURL: &url}); err != nil {
		writeServiceError(w, err)
		return
	}
	updated, err := s.auth.GetUser(user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	s.syncUserDirectory(updated)
	httputil.WriteSuccess(w, avatarResponse{AvatarURL: url})
}

// UploadOrgAvatar replaces the organization's avatar with the request body
func (s *Server) UploadOrgAvatar(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrg(r)

	url, ok := s.storeAvatar(w, r, storage.KindOrganization, org.ID)
	if !ok {
		return
	}

	if err := s.orgs.UpdateOrganization(org.ID, &orgs.UpdateOrgRequest{AvatarURL: &url}); err != nil {
		writeServiceError(w, err)
		return
	}
	s.resolver.InvalidateOrg(org.Slug)
	httputil.WriteSuccess(w, avatarResponse{AvatarURL: url})
}

// storeAvatar writes the request body to the avatar store and returns the
// public URL. It writes the error response itself on failure.
func (s *Server) storeAvatar(w http.ResponseWriter, r *http.Request, kind storage.Kind, id string) (string, bool) {
	contentType := r.Header.Get("Content-Type")
	body := http.MaxBytesReader(w, r.Body, maxAvatarSize)
	defer body.Close()

	url, err := s.avatars.Put(r.Context(), kind, id, body, contentType)
	if errors.Is(err, storage.ErrUnsupportedType) {
		httputil.WriteBadRequest(w, "unsupported avatar content type")
		return "", false
	}
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httputil.WriteErrorMessage(w, http.StatusRequestEntityTooLarge, "avatar too large")
			return "", false
		}
		httputil.WriteInternalError(w, err)
		return "", false
	}
	return url, true
}

// ServeAvatar streams a stored avatar. The file segment carries the id plus
// the extension the avatar was stored under; the store is keyed by id alone.
func (s *Server) ServeAvatar(w http.ResponseWriter, r *http.Request) {
	kindVar, ok := httputil.ParsePathStringOrError(w, r, "kind")
	if !ok {
		return
	}
	file, ok := httputil.ParsePathStringOrError(w, r, "file")
	if !ok {
		return
	}

	kind := storage.Kind(kindVar)
	switch kind {
	case storage.KindUser, storage.KindOrganization, storage.KindProject:
	default:
		httputil.WriteBadRequest(w, "unknown avatar kind")
		return
	}
	id := strings.TrimSuffix(file, path.Ext(file))

	content, contentType, err := s.avatars.Get(r.Context(), kind, id)
	if errors.Is(err, storage.ErrNotFound) {
		httputil.WriteNotFoundError(w, "avatar not found")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	defer content.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	io.Copy(w, content)
}
