package config

import "time"

type GatewayConfig struct {
	Path      string          `toml:"path"`
	WebSocket WebSocketConfig `toml:"websocket"`
}

type WebSocketConfig struct {
	PingInterval   time.Duration `toml:"ping_interval"`
	WriteWait      time.Duration `toml:"write_wait"`
	PongWait       time.Duration `toml:"pong_wait"`
	MaxMessageSize int64         `toml:"max_message_size"`
	SendBuffer     int           `toml:"send_buffer"`
}

func defaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		Path: "/ws",
		WebSocket: WebSocketConfig{
			PingInterval:   54 * time.Second,
			WriteWait:      10 * time.Second,
			PongWait:       60 * time.Second,
			MaxMessageSize: 512,
			SendBuffer:     256,
		},
	}
}

func (g *GatewayConfig) applyEnv() {
	g.Path = getEnv("GATEWAY_WS_PATH", g.Path)
	g.WebSocket.PingInterval = getEnvDuration("GATEWAY_WS_PING_INTERVAL", g.WebSocket.PingInterval)
	g.WebSocket.PongWait = getEnvDuration("GATEWAY_WS_PONG_WAIT", g.WebSocket.PongWait)
	g.WebSocket.WriteWait = getEnvDuration("GATEWAY_WS_WRITE_WAIT", g.WebSocket.WriteWait)
	g.WebSocket.SendBuffer = getEnvInt("GATEWAY_WS_SEND_BUFFER", g.WebSocket.SendBuffer)
}
