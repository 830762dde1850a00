package service

import (
	"forum_harvester/internal/config"
	"forum_harvester/internal/domain"
)

// ModeSelector decides between delta and full harvesting per source.
type ModeSelector struct {
	alwaysFull  map[string]bool
	alwaysDelta map[string]bool
	persistence bool
}

func NewModeSelector(cfg config.HarvestConfig) *ModeSelector {
	m := &ModeSelector{
		alwaysFull:  make(map[string]bool, len(cfg.AlwaysFull)),
		alwaysDelta: make(map[string]bool, len(cfg.AlwaysDelta)),
		persistence: !cfg.DisablePersistence,
	}
	for _, name := range cfg.AlwaysFull {
		m.alwaysFull[name] = true
	}
	for _, name := range cfg.AlwaysDelta {
		m.alwaysDelta[name] = true
	}
	return m
}

// ShouldUseDelta: the always-full list wins over always-delta, which wins over
// the persistence default.
func (m *ModeSelector) ShouldUseDelta(name string) bool {
	if m.alwaysFull[name] {
		return false
	}
	if m.alwaysDelta[name] {
		return true
	}
	return m.persistence
}

func (m *ModeSelector) Mode(name string) domain.HarvestMode {
	if m.ShouldUseDelta(name) {
		return domain.ModeDelta
	}
	return domain.ModeFull
}
