package roomhandler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"roomrelay/internal/auth"
	"roomrelay/internal/presence"
	"roomrelay/internal/services/rooms"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type fakeRooms struct {
	rooms.IRoomService
	created []string
	byName  map[string]rooms.RoomDTO
}

func (f *fakeRooms) CreateRoom(_ context.Context, name, creator string) (*rooms.RoomDTO, error) {
	if _, ok := f.byName[name]; ok {
		return nil, rooms.ErrRoomExists
	}
	dto := rooms.RoomDTO{ID: int64(len(f.byName) + 1), Name: name, CreatedBy: creator, Participants: []string{creator}}
	f.byName[name] = dto
	f.created = append(f.created, creator)
	return &dto, nil
}

func (f *fakeRooms) GetRoom(_ context.Context, name string) (*rooms.RoomDTO, error) {
	dto, ok := f.byName[name]
	if !ok {
		return nil, rooms.ErrRoomNotFound
	}
	return &dto, nil
}

func (f *fakeRooms) ListRooms(_ context.Context, limit, offset int) ([]rooms.RoomDTO, error) {
	out := []rooms.RoomDTO{}
	for _, dto := range f.byName {
		out = append(out, dto)
	}
	return out, nil
}

type fakePresence map[string][]presence.Member

func (f fakePresence) MembersWithIdentity(roomID string) []presence.Member { return f[roomID] }

func newEngine(svc rooms.IRoomService, pr PresenceReader) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api", func(c *gin.Context) {
		c.Set(auth.IdentityKey, "alice")
	})
	New(svc, pr).Register(api)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateRoom(t *testing.T) {
	svc := &fakeRooms{byName: map[string]rooms.RoomDTO{}}
	r := newEngine(svc, fakePresence{})

	w := do(r, http.MethodPost, "/api/rooms", `{"roomName":"standup"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var dto rooms.RoomDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dto))
	require.Equal(t, "standup", dto.Name)
	require.Equal(t, []string{"alice"}, svc.created)

	w = do(r, http.MethodPost, "/api/rooms", `{"roomName":"standup"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), rooms.ErrRoomExists.Error())

	w = do(r, http.MethodPost, "/api/rooms", `{}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetAndListRooms(t *testing.T) {
	svc := &fakeRooms{byName: map[string]rooms.RoomDTO{
		"standup": {ID: 1, Name: "standup", CreatedBy: "alice"},
	}}
	r := newEngine(svc, fakePresence{})

	w := do(r, http.MethodGet, "/api/rooms/standup", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/api/rooms/retro", "")
	require.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodGet, "/api/rooms?limit=10", "")
	require.Equal(t, http.StatusOK, w.Code)
	var out []rooms.RoomDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out, 1)

	w = do(r, http.MethodGet, "/api/rooms?limit=500", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPresence(t *testing.T) {
	pr := fakePresence{"standup": {{ConnID: "c1", Identity: "alice"}}}
	r := newEngine(&fakeRooms{byName: map[string]rooms.RoomDTO{}}, pr)

	w := do(r, http.MethodGet, "/api/rooms/standup/presence", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t,
		`{"roomId":"standup","members":[{"connectionId":"c1","identity":"alice"}]}`,
		w.Body.String())

	w = do(r, http.MethodGet, "/api/rooms/empty/presence", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"roomId":"empty","members":[]}`, w.Body.String())
}
