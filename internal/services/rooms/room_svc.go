package rooms

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"roomrelay/internal/relay"
)

type RoomDTO struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"         example:"standup"`
	CreatedBy    string    `json:"created_by"   example:"alice"`
	Participants []string  `json:"participants"`
	CreatedAt    time.Time `json:"created_at"   example:"2025-07-27T16:05:05Z"`
}

var (
	ErrRoomExists   = errors.New("room already exists")
	ErrRoomNotFound = errors.New("room not found")
	ErrUnknownUser  = errors.New("unknown user")
)

type IRoomService interface {
	CreateRoom(ctx context.Context, name, creator string) (*RoomDTO, error)
	GetRoom(ctx context.Context, name string) (*RoomDTO, error)
	ListRooms(ctx context.Context, limit, offset int) ([]RoomDTO, error)

	// RecordMembership adds identity to the room's durable participants.
	// Unknown rooms or users are silently ignored.
	RecordMembership(ctx context.Context, roomID, identity string) error
}

type roomService struct {
	db *sql.DB
}

var _ relay.MembershipRecorder = (*roomService)(nil)

func NewRoomService(db *sql.DB) IRoomService {
	return &roomService{db: db}
}

const selectRooms = `
	SELECT r.id, r.name, coalesce(c.username, ''), r.created_at,
	       coalesce(string_agg(u.username, ',' ORDER BY u.username), '')
	  FROM rooms r
	  LEFT JOIN users c             ON c.id = r.created_by
	  LEFT JOIN room_participants p ON p.room_id = r.id
	  LEFT JOIN users u             ON u.id = p.user_id`

// CreateRoom registers a new room; the creator becomes its first participant.
func (svc *roomService) CreateRoom(ctx context.Context, name, creator string) (*RoomDTO, error) {
	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var userID int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM users WHERE username = $1`, creator).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUnknownUser
	}
	if err != nil {
		return nil, err
	}

	dto := &RoomDTO{Name: name, CreatedBy: creator, Participants: []string{creator}}
	const insRoom = `
	  INSERT INTO rooms (name, created_by) VALUES ($1, $2)
	  ON CONFLICT (name) DO NOTHING
	  RETURNING id, created_at`
	err = tx.QueryRowContext(ctx, insRoom, name, userID).Scan(&dto.ID, &dto.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoomExists
	}
	if err != nil {
		return nil, err
	}

	const insMember = `INSERT INTO room_participants (room_id, user_id) VALUES ($1, $2)`
	if _, err = tx.ExecContext(ctx, insMember, dto.ID, userID); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return dto, nil
}

func (svc *roomService) GetRoom(ctx context.Context, name string) (*RoomDTO, error) {
	row := svc.db.QueryRowContext(ctx, selectRooms+`
	 WHERE r.name = $1
	 GROUP BY r.id, c.username`, name)

	dto, err := scanRoom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return dto, nil
}

func (svc *roomService) ListRooms(ctx context.Context, limit, offset int) ([]RoomDTO, error) {
	if limit == 0 {
		limit = 10
	}
	rows, err := svc.db.QueryContext(ctx, selectRooms+`
	 GROUP BY r.id, c.username
	 ORDER BY r.created_at DESC
	 LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]RoomDTO, 0, limit)
	for rows.Next() {
		dto, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *dto)
	}
	return list, rows.Err()
}

func (svc *roomService) RecordMembership(ctx context.Context, roomID, identity string) error {
	const q = `
	  INSERT INTO room_participants (room_id, user_id)
	       SELECT r.id, u.id
	         FROM rooms r, users u
	        WHERE r.name = $1 AND u.username = $2
	  ON CONFLICT DO NOTHING`
	_, err := svc.db.ExecContext(ctx, q, roomID, identity)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRoom(s scanner) (*RoomDTO, error) {
	var (
		dto          RoomDTO
		participants string
	)
	if err := s.Scan(&dto.ID, &dto.Name, &dto.CreatedBy, &dto.CreatedAt, &participants); err != nil {
		return nil, err
	}
	dto.Participants = []string{}
	if participants != "" {
		dto.Participants = strings.Split(participants, ",")
	}
	return &dto, nil
}
