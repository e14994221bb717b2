package api

import (
	"strings"
	"time"
)

// Condition is a coarse weather category used to pick page colours.
type Condition string

const (
	ConditionClearWarm Condition = "clear_warm"
	ConditionClearCool Condition = "clear_cool"
	ConditionCloudy    Condition = "cloudy"
	ConditionRain      Condition = "rain"
	ConditionStorm     Condition = "storm"
	ConditionFog       Condition = "fog"
	ConditionFrost     Condition = "frost"
)

// ConditionFor categorises an observation from its provider description and
// temperature. Storms and rain win over temperature; freezing or snowy
// conditions win over cloud cover.
func ConditionFor(description string, temp float64) Condition {
	lower := strings.ToLower(description)

	switch {
	case strings.Contains(lower, "thunder") || strings.Contains(lower, "storm"):
		return ConditionStorm
	case strings.Contains(lower, "rain") || strings.Contains(lower, "shower") ||
		strings.Contains(lower, "drizzle"):
		return ConditionRain
	case temp <= 2 || strings.Contains(lower, "snow") || strings.Contains(lower, "sleet"):
		return ConditionFrost
	case strings.Contains(lower, "fog") || strings.Contains(lower, "mist") ||
		strings.Contains(lower, "haze") || strings.Contains(lower, "smoke"):
		return ConditionFog
	case strings.Contains(lower, "cloud"):
		return ConditionCloudy
	case temp >= 25:
		return ConditionClearWarm
	default:
		return ConditionClearCool
	}
}

// IsDaytime reports whether t falls in the 07:00-17:00 daylight band.
func IsDaytime(t time.Time) bool {
	h := t.Hour()
	return h >= 7 && h < 17
}

// Palette is the colour scheme the page is drawn with.
type Palette struct {
	Background string
	Card       string
	CardBorder string
	Text       string
	TextMuted  string
	Accent     string
	AccentAlt  string
}

var DefaultPalette = Palette{
	Background: "#0f0f1a",
	Card:       "#1a1a2e",
	CardBorder: "#2a2a4e",
	Text:       "#eeeeee",
	TextMuted:  "#666666",
	Accent:     "#4fc3f7",
	AccentAlt:  "#ff7043",
}

// dayPalettes holds the light scheme for each condition. Night schemes share
// one dark base and keep the condition's accents.
var dayPalettes = map[Condition]Palette{
	ConditionClearWarm: {Background: "#faf3e6", Card: "#fffdf8", CardBorder: "#ead9bc", Text: "#2e2418", TextMuted: "#7a6650", Accent: "#c8661a", AccentAlt: "#a8401c"},
	ConditionClearCool: {Background: "#eaf2f8", Card: "#fbfdff", CardBorder: "#cbdcea", Text: "#182632", TextMuted: "#52687a", Accent: "#1f7bb0", AccentAlt: "#b85a2e"},
	ConditionCloudy:    {Background: "#e2e5e9", Card: "#f3f4f6", CardBorder: "#c6ccd3", Text: "#23272e", TextMuted: "#646b74", Accent: "#46788f", AccentAlt: "#a65a38"},
	ConditionRain:      {Background: "#d9e2ea", Card: "#ebf1f5", CardBorder: "#b6c7d5", Text: "#17202a", TextMuted: "#4f606c", Accent: "#2a6a9c", AccentAlt: "#95553a"},
	ConditionStorm:     {Background: "#c3c6d0", Card: "#d7d9e2", CardBorder: "#a2a7b6", Text: "#16161f", TextMuted: "#4a4a5c", Accent: "#5a4a9a", AccentAlt: "#9a3e3e"},
	ConditionFog:       {Background: "#dcdfe2", Card: "#eceef0", CardBorder: "#c3c7cb", Text: "#1f2327", TextMuted: "#62676c", Accent: "#5e6f7e", AccentAlt: "#8c6656"},
	ConditionFrost:     {Background: "#e6eef6", Card: "#f5f9fd", CardBorder: "#c6d6e6", Text: "#0f1f30", TextMuted: "#3f5f7f", Accent: "#1c7cb6", AccentAlt: "#b85c40"},
}

var nightBase = Palette{
	Background: "#07090e",
	Card:       "#10131b",
	CardBorder: "#1d2230",
	Text:       "#d2d7e2",
	TextMuted:  "#586276",
}

func paletteFor(condition Condition, day bool) Palette {
	p, ok := dayPalettes[condition]
	if !ok {
		return DefaultPalette
	}
	if day {
		return p
	}
	night := nightBase
	night.Accent = p.Accent
	night.AccentAlt = p.AccentAlt
	return night
}
