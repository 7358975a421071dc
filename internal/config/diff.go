package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// BudgetsChanged is true if any per-mode recording budget changed.
	BudgetsChanged bool
	NewBudgets     BudgetsConfig

	// ThresholdChanged is true if the weak-word threshold changed.
	ThresholdChanged bool
	NewThreshold     float64
}

// Empty reports whether the diff carries no reloadable change.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.BudgetsChanged && !d.ThresholdChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart: log level,
// recording budgets, and the weak-word threshold. Provider, storage, and
// server changes require a restart and are ignored here.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Recording.Budgets != new.Recording.Budgets {
		d.BudgetsChanged = true
		d.NewBudgets = new.Recording.Budgets
	}

	if old.Practice.WeakWordThreshold != new.Practice.WeakWordThreshold {
		d.ThresholdChanged = true
		d.NewThreshold = new.Practice.WeakWordThreshold
	}

	return d
}
