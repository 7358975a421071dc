package config

import (
	"testing"
	"time"
)

func baseConfig() *Config {
	return &Config{
		Server: ServerConfig{ListenAddr: ":8080", LogLevel: LogInfo},
		Recording: RecordingConfig{
			Budgets: BudgetsConfig{
				WordDrill:      Duration(15 * time.Second),
				Sentence:       Duration(time.Minute),
				FullTranscript: Duration(5 * time.Minute),
			},
		},
		Practice: PracticeConfig{WeakWordThreshold: 70},
	}
}

func TestDiff_NoChanges(t *testing.T) {
	old, new := baseConfig(), baseConfig()
	if d := Diff(old, new); !d.Empty() {
		t.Fatalf("diff of identical configs = %+v", d)
	}
}

func TestDiff_LogLevel(t *testing.T) {
	old, new := baseConfig(), baseConfig()
	new.Server.LogLevel = LogDebug

	d := Diff(old, new)
	if !d.LogLevelChanged || d.NewLogLevel != LogDebug {
		t.Fatalf("diff = %+v", d)
	}
	if d.BudgetsChanged || d.ThresholdChanged {
		t.Fatalf("unrelated fields flagged: %+v", d)
	}
}

func TestDiff_Budgets(t *testing.T) {
	old, new := baseConfig(), baseConfig()
	new.Recording.Budgets.Sentence = Duration(90 * time.Second)

	d := Diff(old, new)
	if !d.BudgetsChanged {
		t.Fatalf("diff = %+v", d)
	}
	if d.NewBudgets.Sentence.Std() != 90*time.Second {
		t.Fatalf("new budgets = %+v", d.NewBudgets)
	}
}

func TestDiff_Threshold(t *testing.T) {
	old, new := baseConfig(), baseConfig()
	new.Practice.WeakWordThreshold = 60

	d := Diff(old, new)
	if !d.ThresholdChanged || d.NewThreshold != 60 {
		t.Fatalf("diff = %+v", d)
	}
}

func TestDiff_IgnoresRestartOnlyChanges(t *testing.T) {
	old, new := baseConfig(), baseConfig()
	new.Server.ListenAddr = ":9090"
	new.Storage.PostgresDSN = "postgres://other"

	if d := Diff(old, new); !d.Empty() {
		t.Fatalf("restart-only changes flagged: %+v", d)
	}
}
