package server

import "github.com/rs/zerolog/log"

const (
	// Standard colors
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	Gray    = "\033[90m" // Bright black, often appears as gray

	ResetColor = "\033[0m" // Reset to default color
)

var methodColors = map[string]string{
	"GET":    Green,
	"POST":   Blue,
	"PUT":    Cyan,
	"DELETE": Yellow,
	"PATCH":  Magenta,
}

func logRoute(method, path string) {
	colour, ok := methodColors[method]
	if !ok {
		colour = Gray
	}
	log.Debug().Msgf("[%s%-7s%s] %s", colour, method, ResetColor, path)
}
