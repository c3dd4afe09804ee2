package telegram

import "strings"

const messageLimit = 4096

// SplitMessage режет текст на куски в пределах лимита Telegram, стараясь
// рвать по границам строк, чтобы не ломать форматирование списков.
func SplitMessage(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if len([]rune(trimmed)) <= messageLimit {
		return []string{trimmed}
	}

	var parts []string
	var current []rune
	flush := func() {
		chunk := strings.Trim(string(current), "\n")
		if chunk != "" {
			parts = append(parts, chunk)
		}
		current = current[:0]
	}

	for _, line := range strings.Split(trimmed, "\n") {
		runes := []rune(line)
		// Строка длиннее лимита режется жёстко.
		for len(runes) > messageLimit {
			flush()
			parts = append(parts, string(runes[:messageLimit]))
			runes = runes[messageLimit:]
		}
		if len(current)+len(runes)+1 > messageLimit {
			flush()
		}
		if len(current) > 0 {
			current = append(current, '\n')
		}
		current = append(current, runes...)
	}
	flush()

	if len(parts) == 0 {
		return []string{trimmed}
	}
	return parts
}
