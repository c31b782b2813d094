package roomhandler

import "roomrelay/internal/presence"

type CreateRoomBody struct {
	RoomName string `json:"roomName" binding:"required,min=1,max=128" example:"standup"`
} // @name CreateRoomRequest

type ErrorResponse struct {
	Error string `json:"error"`
} // @name ErrorResponse

type ListRoomsQuery struct {
	Limit  int `form:"limit,default=50" binding:"gte=0,lte=200"`
	Offset int `form:"offset,default=0" binding:"gte=0"`
} // @name ListRoomsQuery

type PresenceResponse struct {
	RoomID  string            `json:"roomId"  example:"standup"`
	Members []presence.Member `json:"members"`
} // @name PresenceResponse
