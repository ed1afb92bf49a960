package notifications

import (
	"context"
	"sync"
)

// Recorder is an in-memory Dispatcher. It keeps everything it was handed and
// can be told to fail.
type Recorder struct {
	mu            sync.Mutex
	Notifications []Notification
	ChatRooms     []ChatRoomRequest
	Err           error
}

func (r *Recorder) Notify(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Notifications = append(r.Notifications, n)
	return nil
}

func (r *Recorder) ProvisionChatRoom(_ context.Context, req ChatRoomRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.ChatRooms = append(r.ChatRooms, req)
	return nil
}

// Sent returns a copy of the recorded notifications.
func (r *Recorder) Sent() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.Notifications...)
}

// Rooms returns a copy of the recorded chat-room requests.
func (r *Recorder) Rooms() []ChatRoomRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ChatRoomRequest(nil), r.ChatRooms...)
}
