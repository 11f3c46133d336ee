package logger

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

var log zerolog.Logger

// Init configures the global logger. Development gets a console writer
// at debug level; everything else gets JSON at info level.
func Init(environment string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	if environment == "development" {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(zerolog.DebugLevel).
			With().Timestamp().Logger()
		return
	}

	log = zerolog.New(os.Stderr).
		Level(zerolog.InfoLevel).
		With().Timestamp().Logger()
}

func Debug(msg string, keyvals ...any) {
	withFields(log.Debug(), keyvals).Msg(msg)
}

func Info(msg string, keyvals ...any) {
	withFields(log.Info(), keyvals).Msg(msg)
}

func Warn(msg string, keyvals ...any) {
	withFields(log.Warn(), keyvals).Msg(msg)
}

func Error(msg string, keyvals ...any) {
	withFields(log.Error(), keyvals).Msg(msg)
}

func Fatal(msg string, keyvals ...any) {
	withFields(log.Fatal(), keyvals).Msg(msg)
}

func withFields(ev *zerolog.Event, keyvals []any) *zerolog.Event {
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			key = fmt.Sprint(keyvals[i])
		}
		ev = ev.Interface(key, keyvals[i+1])
	}
	return ev
}
