package service

// GatewayService pushes messages to connected observers.
type GatewayService interface {
	// Broadcast sends to every connection, tagged with channel.
	Broadcast(channel string, command string, payload interface{})
	// SendToUser sends to the connections of one participant.
	SendToUser(userID string, channel string, command string, payload interface{})
}
