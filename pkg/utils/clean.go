package utils

import (
	"strings"
)

// CleanJsonBlock удаляет markdown-обёртку вокруг JSON.
//
// LLM часто присылает аргументы обёрнутыми в кодовый блок:
//
//	```json
//	{"symbol": "AAPL"}
//	```
//
// Примеры:
//
//	```json {"a": 1} ``` → {"a": 1}
//	``` {"a": 1} ``` → {"a": 1}
func CleanJsonBlock(s string) string {
	s = strings.TrimSpace(s)

	// Удаляем ```json в начале, регистр метки не важен
	if len(s) >= 7 && strings.EqualFold(s[:7], "```json") {
		s = s[7:]
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	return strings.TrimSpace(s)
}
