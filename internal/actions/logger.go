package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog"

	"github.com/TimurManjosov/goruled/internal/rules"
)

// KindLogger emits the stored message through the structured log at the stored
// level. Generic: runs with or without an entity; when an entity is present it
// is attached to the log record.
const KindLogger rules.ActionKind = "logger"

// Logging levels accepted by the logger action.
const (
	LevelDebug    = "DEBUG"
	LevelInfo     = "INFO"
	LevelWarning  = "WARNING"
	LevelError    = "ERROR"
	LevelCritical = "CRITICAL"
)

type loggerParams struct {
	Level   string `mapstructure:"level"`
	Message string `mapstructure:"message"`
}

// LoggerDefinition builds the logger action over the given logger.
func LoggerDefinition(log zerolog.Logger) Definition {
	return Definition{
		Kind: KindLogger,
		Validate: func(params map[string]any) error {
			var p loggerParams
			if err := decodeParams(params, &p); err != nil {
				return err
			}
			if _, err := parseLevel(p.Level); err != nil {
				return err
			}
			if p.Message == "" {
				return fmt.Errorf("message is required: %w", rules.ErrInvalidArgument)
			}
			return nil
		},
		Run: func(_ context.Context, req RunRequest) error {
			var p loggerParams
			if err := decodeParams(req.Action.Params, &p); err != nil {
				return err
			}
			level, err := parseLevel(p.Level)
			if err != nil {
				return err
			}
			evt := log.WithLevel(level).Str("rule_id", req.Rule.ID)
			if req.Entity != nil {
				evt = evt.Str("entity_type", req.Entity.EntityType()).Str("entity_id", req.Entity.EntityID())
			}
			evt.Msg(p.Message)
			return nil
		},
	}
}

func parseLevel(level string) (zerolog.Level, error) {
	switch strings.ToUpper(level) {
	case LevelDebug:
		return zerolog.DebugLevel, nil
	case LevelInfo:
		return zerolog.InfoLevel, nil
	case LevelWarning:
		return zerolog.WarnLevel, nil
	case LevelError:
		return zerolog.ErrorLevel, nil
	case LevelCritical:
		// zerolog has no critical level; Fatal is the closest severity and
		// WithLevel does not exit the process.
		return zerolog.FatalLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("unknown logging level %q: %w", level, rules.ErrInvalidArgument)
	}
}

func decodeParams(params map[string]any, out any) error {
	if err := mapstructure.Decode(params, out); err != nil {
		return fmt.Errorf("decoding params: %w: %w", rules.ErrInvalidArgument, err)
	}
	return nil
}
