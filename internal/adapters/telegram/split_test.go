package telegram

import (
	"strings"
	"testing"
)

func TestSplitMessageShortText(t *testing.T) {
	parts := SplitMessage("  Привет!  ")
	if len(parts) != 1 || parts[0] != "Привет!" {
		t.Fatalf("короткий текст должен уйти одним сообщением: %q", parts)
	}
}

func TestSplitMessageEmpty(t *testing.T) {
	if parts := SplitMessage("   \n  "); parts != nil {
		t.Fatalf("пустой текст не должен давать сообщений: %q", parts)
	}
}

func TestSplitMessageBreaksOnLines(t *testing.T) {
	line := strings.Repeat("а", 1000)
	text := strings.Join([]string{line, line, line, line, line}, "\n")
	parts := SplitMessage(text)
	if len(parts) < 2 {
		t.Fatalf("5000 символов не влезают в одно сообщение: %d частей", len(parts))
	}
	for i, part := range parts {
		if n := len([]rune(part)); n > messageLimit {
			t.Fatalf("часть %d длиной %d превышает лимит", i, n)
		}
		// Рвём по границам строк: каждая часть состоит из целых строк.
		for _, l := range strings.Split(part, "\n") {
			if l != line {
				t.Fatalf("строка разорвана внутри части %d", i)
			}
		}
	}
}

func TestSplitMessagePreservesContent(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 300; i++ {
		b.WriteString(strings.Repeat("строка", 5))
		b.WriteByte('\n')
	}
	parts := SplitMessage(b.String())
	joined := strings.Join(parts, "\n")
	if joined != strings.TrimSpace(b.String()) {
		t.Fatal("после склейки частей текст должен совпадать с исходным")
	}
}

func TestSplitMessageHardCutsLongLine(t *testing.T) {
	long := strings.Repeat("б", messageLimit+100)
	parts := SplitMessage(long)
	if len(parts) != 2 {
		t.Fatalf("ожидали 2 части, получили %d", len(parts))
	}
	if len([]rune(parts[0])) != messageLimit || len([]rune(parts[1])) != 100 {
		t.Fatalf("неверные длины: %d и %d", len([]rune(parts[0])), len([]rune(parts[1])))
	}
}
