package roomhandler

import (
	"errors"
	"net/http"

	"roomrelay/internal/auth"
	"roomrelay/internal/presence"
	"roomrelay/internal/services/rooms"

	"github.com/gin-gonic/gin"
)

// PresenceReader answers who is live in a room on this instance.
type PresenceReader interface {
	MembersWithIdentity(roomID string) []presence.Member
}

type Handler struct {
	svc      rooms.IRoomService
	presence PresenceReader
}

func New(svc rooms.IRoomService, pr PresenceReader) *Handler {
	return &Handler{svc: svc, presence: pr}
}

func (h *Handler) Register(r gin.IRoutes) {
	r.POST("/rooms", h.create)
	r.GET("/rooms", h.list)
	r.GET("/rooms/:name", h.info)
	r.GET("/rooms/:name/presence", h.live)
}

// @Summary		Create a room
// @Description	Registers a room; the caller becomes its first participant.
// @Tags			Rooms
// @Security		BearerAuth
// @Param			body	body		CreateRoomBody	true	"Room payload"
// @Success		201		{object}	rooms.RoomDTO
// @Failure		400		{object}	ErrorResponse
// @Failure		401		{object}	ErrorResponse
// @Router			/api/rooms [post]
func (h *Handler) create(ginCtx *gin.Context) {
	var body CreateRoomBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}

	dto, err := h.svc.CreateRoom(ginCtx.Request.Context(), body.RoomName, ginCtx.GetString(auth.IdentityKey))
	switch {
	case errors.Is(err, rooms.ErrRoomExists):
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	case errors.Is(err, rooms.ErrUnknownUser):
		ginCtx.JSON(http.StatusUnauthorized, &ErrorResponse{Error: err.Error()})
		return
	case err != nil:
		ginCtx.JSON(http.StatusInternalServerError, &ErrorResponse{Error: err.Error()})
		return
	}
	ginCtx.JSON(http.StatusCreated, dto)
}

// @Summary		List rooms
// @Description	Retrieves a paginated list of rooms with their durable participants.
// @Tags			Rooms
// @Security		BearerAuth
// @Param			limit	query		int	false	"Max results (0‑200)"	minimum(0)	maximum(200)	default(50)
// @Param			offset	query		int	false	"Offset for pagination"	minimum(0)	default(0)
// @Success		200		{array}		rooms.RoomDTO
// @Failure		400		{object}	ErrorResponse
// @Failure		500		{object}	ErrorResponse
// @Router			/api/rooms [get]
func (h *Handler) list(c *gin.Context) {
	var q ListRoomsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	out, err := h.svc.ListRooms(c, q.Limit, q.Offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary		Get room details
// @Tags			Rooms
// @Security		BearerAuth
// @Param			name	path		string	true	"Room name"	default(standup)
// @Success		200		{object}	rooms.RoomDTO
// @Failure		404		{object}	ErrorResponse
// @Router			/api/rooms/{name} [get]
func (h *Handler) info(c *gin.Context) {
	dto, err := h.svc.GetRoom(c, c.Param("name"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, rooms.ErrRoomNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto)
}

// @Summary		Live presence
// @Description	Connections currently joined to the room on this instance.
// @Tags			Rooms
// @Security		BearerAuth
// @Param			name	path		string	true	"Room name"	default(standup)
// @Success		200		{object}	PresenceResponse
// @Router			/api/rooms/{name}/presence [get]
func (h *Handler) live(c *gin.Context) {
	roomID := c.Param("name")
	members := h.presence.MembersWithIdentity(roomID)
	if members == nil {
		members = []presence.Member{}
	}
	c.JSON(http.StatusOK, PresenceResponse{RoomID: roomID, Members: members})
}
