package log

import (
	"strconv"
)

var ansiTextColorReset = ansi(39)

func ansi(code int) string {
	return "\033[" + strconv.FormatInt(int64(code), 10) + "m"
}

func hash(str string) int {
	var hash int = 5381
	for _, c := range str {
		hash = ((hash << 5) + hash) + int(c)
	}
	return hash
}

// randColor returns a stable ANSI color code for the given seed
func randColor(seed string) int {
	h := hash(seed) % 6
	if h < 0 {
		h = -h
	}
	return h + 31
}

func color(clr int, text string) string {
	return ansi(clr) + text + ansiTextColorReset
}

// Colorize paints text with the color that belongs to seed, so every app keeps
// the same color across log lines.
func Colorize(seed string, text string) string {
	return color(randColor(seed), text)
}
