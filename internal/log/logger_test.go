package log

import (
	"testing"
)

func TestInit_ProvidesLogger(t *testing.T) {
	Init(&Config{Level: "debug", Format: "text"})

	l := GetLogger()
	if l == nil {
		t.Fatal("GetLogger returned nil after Init")
	}

	// Field chaining returns usable loggers.
	l2 := l.WithField("component", "test").WithFields(map[string]interface{}{"k": "v"})
	if l2 == nil {
		t.Fatal("field chaining returned nil")
	}
	l2.Debugf("debug message %d", 1)
	l2.Info("info message")
}

func TestInit_IsIdempotent(t *testing.T) {
	Init(&Config{Level: "info", Format: "json"})
	first := GetLogger()
	Init(&Config{Level: "debug", Format: "text"})
	if GetLogger() != first {
		t.Error("second Init replaced the logger")
	}
}

func TestSlogLevelParsing(t *testing.T) {
	cases := map[string]string{
		"debug": "DEBUG", "info": "INFO", "warn": "WARN", "error": "ERROR", "bogus": "INFO",
	}
	for in, want := range cases {
		if got := slogLevel(in).String(); got != want {
			t.Errorf("slogLevel(%q) = %s, expected %s", in, got, want)
		}
	}
}
