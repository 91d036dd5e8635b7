package service

import "superid/internal/websocket"

// Notifier pushes events to a user's connected devices. Delivery is best effort.
type Notifier interface {
	NotifyUser(userID string, msgType websocket.MessageType, payload interface{}) error
}

type nopNotifier struct{}

func (nopNotifier) NotifyUser(string, websocket.MessageType, interface{}) error { return nil }
