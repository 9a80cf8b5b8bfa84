package main

import (
	"testing"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/config"
)

func TestSetupLogger(t *testing.T) {
	defer func() {
		log.SetFormatter(&log.TextFormatter{})
		log.SetLevel(log.InfoLevel)
	}()

	setupLogger(config.Log{Level: "debug", Format: "json"})
	if log.GetLevel() != log.DebugLevel {
		t.Fatalf("expected debug level, got %s", log.GetLevel())
	}
	if _, ok := log.StandardLogger().Formatter.(*log.JSONFormatter); !ok {
		t.Fatalf("expected JSON formatter, got %T", log.StandardLogger().Formatter)
	}

	setupLogger(config.Log{Level: "not-a-level", Format: "text"})
	if log.GetLevel() != log.InfoLevel {
		t.Fatalf("expected fallback to info level, got %s", log.GetLevel())
	}
	if _, ok := log.StandardLogger().Formatter.(*log.TextFormatter); !ok {
		t.Fatalf("expected text formatter, got %T", log.StandardLogger().Formatter)
	}
}
