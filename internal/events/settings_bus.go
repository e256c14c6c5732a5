package events

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Panos61/videocall-app-client-sub000/internal/channel"
	"github.com/Panos61/videocall-app-client-sub000/internal/domain"
)

// SettingsBus carries the room settings broadcast. Last write wins;
// the client renders whatever the latest frame said.
type SettingsBus struct {
	ch *channel.Channel

	mu      sync.RWMutex
	current domain.RoomSettings
}

func NewSettingsBus(opts channel.Options) *SettingsBus {
	if opts.Name == "" {
		opts.Name = "events.settings"
	}
	b := &SettingsBus{ch: channel.New(opts)}
	b.ch.OnFrame(b.Dispatch)
	return b
}

func (b *SettingsBus) Connect(ctx context.Context, route string) error {
	return b.ch.Connect(ctx, route)
}

func (b *SettingsBus) Disconnect()     { b.ch.Disconnect() }
func (b *SettingsBus) Connected() bool { return b.ch.Connected() }

// Publish broadcasts new settings. The server enforces host-only.
func (b *SettingsBus) Publish(s domain.RoomSettings) error {
	return b.ch.Send(domain.SettingsEvent{Type: domain.EventSettingsUpdated, Settings: s})
}

func (b *SettingsBus) Dispatch(eventType string, data []byte) {
	if eventType != domain.EventSettingsUpdated {
		log.Warn().Str("module", "events.settings").Str("type", eventType).Msg("unknown settings event")
		return
	}
	var ev domain.SettingsEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		log.Error().Err(err).Str("module", "events.settings").Msg("bad settings payload")
		return
	}
	b.mu.Lock()
	b.current = ev.Settings
	b.mu.Unlock()
}

func (b *SettingsBus) Current() domain.RoomSettings {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current
}
