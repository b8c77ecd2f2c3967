package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// VoiceSettings are the per-language TTS voice parameters (§6 voice
// configuration file format).
type VoiceSettings struct {
	Provider     string  `json:"provider"`
	VoiceName    string  `json:"voice_name"`
	LanguageCode string  `json:"language_code"`
	SpeakingRate float64 `json:"speaking_rate"`
}

// defaultVoiceKey names the fallback entry that Lookup returns whole when no
// language entry matches; its fields are not merged into matched entries.
const defaultVoiceKey = "__DEFAULT__"

// VoiceTable maps a language name (case-insensitive) to its voice settings.
type VoiceTable struct {
	entries map[string]VoiceSettings
	fallback VoiceSettings
}

// LoadVoiceTable reads and parses the VOICE_CONFIG_FILE JSON document.
func LoadVoiceTable(path string) (*VoiceTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read voice config %s: %w", path, err)
	}

	var parsed map[string]VoiceSettings
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse voice config %s: %w", path, err)
	}

	table := &VoiceTable{entries: make(map[string]VoiceSettings, len(parsed))}
	for language, settings := range parsed {
		key := strings.ToLower(language)
		if key == strings.ToLower(defaultVoiceKey) {
			table.fallback = settings
			continue
		}
		table.entries[key] = settings
	}

	return table, nil
}

// Lookup resolves voice settings for a language: exact match first, then
// longest-matching prefix, then the __DEFAULT__ entry (§6).
func (t *VoiceTable) Lookup(language string) VoiceSettings {
	if t == nil {
		return VoiceSettings{}
	}

	key := strings.ToLower(language)
	if settings, ok := t.entries[key]; ok {
		return settings
	}

	var best VoiceSettings
	bestLen := -1
	for candidate, settings := range t.entries {
		if strings.HasPrefix(key, candidate) && len(candidate) > bestLen {
			best = settings
			bestLen = len(candidate)
		}
	}
	if bestLen >= 0 {
		return best
	}

	return t.fallback
}
