package fmp

import (
	"fmt"
	"strings"
)

// Generation — поколение API, выбирает базовый URL.
type Generation int

const (
	V3 Generation = iota
	V4
	Stable
)

func (g Generation) String() string {
	switch g {
	case V3:
		return "v3"
	case V4:
		return "v4"
	case Stable:
		return "stable"
	default:
		return fmt.Sprintf("generation(%d)", int(g))
	}
}

// ParseGeneration разбирает имя поколения из конфигурации.
// Пустая строка означает v3.
func ParseGeneration(s string) (Generation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "v3":
		return V3, nil
	case "v4":
		return V4, nil
	case "stable":
		return Stable, nil
	default:
		return 0, fmt.Errorf("unknown api generation '%s' (valid: v3, v4, stable)", s)
	}
}
