package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/repositories"
)

type fakeUserStore struct {
	users map[string]models.User
}

func newFakeUserStore(users ...models.User) *fakeUserStore {
	s := &fakeUserStore{users: make(map[string]models.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *fakeUserStore) Create(_ context.Context, user models.User) error {
	for _, existing := range s.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return repositories.ErrConflict
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *fakeUserStore) FindByID(_ context.Context, id string) (models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

func (s *fakeUserStore) FindByUsername(_ context.Context, username string) (models.User, error) {
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (s *fakeUserStore) FindByUsernameOrEmail(_ context.Context, username, email string) (models.User, error) {
	for _, u := range s.users {
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			return u, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (s *fakeUserStore) UpdateAccount(_ context.Context, id, fullName, email, username string) (models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	for otherID, other := range s.users {
		if otherID == id {
			continue
		}
		if other.Username == username || other.Email == email {
			return models.User{}, repositories.ErrConflict
		}
	}
	user.FullName = fullName
	user.Email = email
	user.Username = username
	s.users[id] = user
	return user, nil
}

func (s *fakeUserStore) UpdatePassword(_ context.Context, id, passwordHash string) error {
	user, ok := s.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	user.Password = passwordHash
	s.users[id] = user
	return nil
}

func (s *fakeUserStore) SetAvatar(_ context.Context, id, url, key string) (models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	user.AvatarURL = url
	user.AvatarKey = key
	s.users[id] = user
	return user, nil
}

func (s *fakeUserStore) SetCoverImage(_ context.Context, id, url, key string) (models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	user.CoverImageURL = url
	user.CoverImageKey = key
	s.users[id] = user
	return user, nil
}

func (s *fakeUserStore) SetRefreshToken(_ context.Context, id, token string) error {
	user, ok := s.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	user.RefreshToken = token
	s.users[id] = user
	return nil
}

func (s *fakeUserStore) RotateRefreshToken(_ context.Context, id, current, next string) error {
	user, ok := s.users[id]
	if !ok || user.RefreshToken != current {
		return repositories.ErrStaleToken
	}
	user.RefreshToken = next
	s.users[id] = user
	return nil
}

func (s *fakeUserStore) ClearRefreshToken(_ context.Context, id string) error {
	user, ok := s.users[id]
	if !ok {
		return nil
	}
	user.RefreshToken = ""
	s.users[id] = user
	return nil
}

type subKey struct{ subscriber, channel string }

type fakeSubscriptionStore struct {
	edges map[subKey]models.Subscription
	users *fakeUserStore
}

func newFakeSubscriptionStore(users *fakeUserStore) *fakeSubscriptionStore {
	return &fakeSubscriptionStore{edges: make(map[subKey]models.Subscription), users: users}
}

func (s *fakeSubscriptionStore) Create(_ context.Context, sub models.Subscription) error {
	key := subKey{sub.SubscriberID, sub.ChannelID}
	if _, exists := s.edges[key]; exists {
		return repositories.ErrConflict
	}
	s.edges[key] = sub
	return nil
}

func (s *fakeSubscriptionStore) Delete(_ context.Context, subscriberID, channelID string) error {
	key := subKey{subscriberID, channelID}
	if _, exists := s.edges[key]; !exists {
		return repositories.ErrNotFound
	}
	delete(s.edges, key)
	return nil
}

func (s *fakeSubscriptionStore) Exists(_ context.Context, subscriberID, channelID string) (bool, error) {
	_, exists := s.edges[subKey{subscriberID, channelID}]
	return exists, nil
}

func (s *fakeSubscriptionStore) CountSubscribers(_ context.Context, channelID string) (int64, error) {
	var n int64
	for key := range s.edges {
		if key.channel == channelID {
			n++
		}
	}
	return n, nil
}

func (s *fakeSubscriptionStore) CountSubscribedChannels(_ context.Context, subscriberID string) (int64, error) {
	var n int64
	for key := range s.edges {
		if key.subscriber == subscriberID {
			n++
		}
	}
	return n, nil
}

func (s *fakeSubscriptionStore) ListSubscribers(_ context.Context, channelID string) ([]models.VideoOwner, error) {
	var out []models.VideoOwner
	for key := range s.edges {
		if key.channel == channelID {
			out = append(out, s.owner(key.subscriber))
		}
	}
	return out, nil
}

func (s *fakeSubscriptionStore) ListSubscribedChannels(_ context.Context, subscriberID string) ([]models.VideoOwner, error) {
	var out []models.VideoOwner
	for key := range s.edges {
		if key.subscriber == subscriberID {
			out = append(out, s.owner(key.channel))
		}
	}
	return out, nil
}

func (s *fakeSubscriptionStore) owner(id string) models.VideoOwner {
	if s.users != nil {
		if u, ok := s.users.users[id]; ok {
			return models.VideoOwner{ID: u.ID, Username: u.Username, Email: u.Email, AvatarURL: u.AvatarURL}
		}
	}
	return models.VideoOwner{ID: id}
}

type fakeVideoStore struct {
	videos map[string]models.Video
	users  *fakeUserStore

	listVideos []models.Video
	listTotal  int64
	listParams repositories.ListVideosParams
}

func newFakeVideoStore(users *fakeUserStore, videos ...models.Video) *fakeVideoStore {
	s := &fakeVideoStore{videos: make(map[string]models.Video), users: users}
	for _, v := range videos {
		s.videos[v.ID] = v
	}
	return s
}

func (s *fakeVideoStore) Create(_ context.Context, video models.Video) error {
	s.videos[video.ID] = video
	return nil
}

func (s *fakeVideoStore) FindByID(_ context.Context, id string) (models.VideoWithOwner, error) {
	video, ok := s.videos[id]
	if !ok {
		return models.VideoWithOwner{}, repositories.ErrNotFound
	}
	result := models.VideoWithOwner{Video: video}
	if s.users != nil {
		if u, ok := s.users.users[video.OwnerID]; ok {
			result.Owner = models.VideoOwner{ID: u.ID, Username: u.Username, Email: u.Email, AvatarURL: u.AvatarURL}
		}
	}
	return result, nil
}

func (s *fakeVideoStore) List(_ context.Context, params repositories.ListVideosParams) ([]models.Video, int64, error) {
	s.listParams = params
	return s.listVideos, s.listTotal, nil
}

func (s *fakeVideoStore) UpdateDetails(_ context.Context, id, title, description string) (models.Video, error) {
	video, ok := s.videos[id]
	if !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	video.Title = title
	video.Description = description
	s.videos[id] = video
	return video, nil
}

func (s *fakeVideoStore) SetThumbnail(_ context.Context, id, url, key string) (models.Video, error) {
	video, ok := s.videos[id]
	if !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	video.ThumbnailURL = url
	video.ThumbnailKey = key
	s.videos[id] = video
	return video, nil
}

func (s *fakeVideoStore) SetMedia(_ context.Context, id, url, key string, duration float64) (models.Video, error) {
	video, ok := s.videos[id]
	if !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	video.MediaURL = url
	video.MediaKey = key
	video.Duration = duration
	s.videos[id] = video
	return video, nil
}

func (s *fakeVideoStore) IncrementViews(_ context.Context, id string) error {
	video, ok := s.videos[id]
	if !ok {
		return repositories.ErrNotFound
	}
	video.Views++
	s.videos[id] = video
	return nil
}

func (s *fakeVideoStore) SetPublished(_ context.Context, id string, published bool) (models.Video, error) {
	video, ok := s.videos[id]
	if !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	video.Published = published
	s.videos[id] = video
	return video, nil
}

func (s *fakeVideoStore) Delete(_ context.Context, id string) error {
	if _, ok := s.videos[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.videos, id)
	return nil
}

type fakeMediaManager struct {
	uploads   int
	uploaded  []string
	cleanedUp []string

	uploadErr error
	duration  float64
}

func (m *fakeMediaManager) Upload(_ context.Context, localPath string) (models.MediaAsset, error) {
	if m.uploadErr != nil {
		return models.MediaAsset{}, m.uploadErr
	}
	m.uploads++
	key := fmt.Sprintf("upload-%d", m.uploads)
	m.uploaded = append(m.uploaded, key)
	return models.MediaAsset{
		URL:      "https://cdn.example.com/" + key,
		Key:      key,
		Duration: m.duration,
	}, nil
}

func (m *fakeMediaManager) Cleanup(_ context.Context, keys ...string) {
	for _, key := range keys {
		if key != "" {
			m.cleanedUp = append(m.cleanedUp, key)
		}
	}
}

// multipartBody builds a multipart form with string fields and fake files.
func multipartBody(t *testing.T, fields map[string]string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			t.Fatalf("write field %s: %v", name, err)
		}
	}
	for field, filename := range files {
		part, err := writer.CreateFormFile(field, filename)
		if err != nil {
			t.Fatalf("create form file %s: %v", field, err)
		}
		if _, err := io.WriteString(part, "fake file contents"); err != nil {
			t.Fatalf("write form file %s: %v", field, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	return &buf, writer.FormDataContentType()
}

func authedRequest(r *http.Request, user models.User) *http.Request {
	return r.WithContext(withCurrentUser(r.Context(), user))
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response envelope: %v", err)
	}
	return envelope
}
