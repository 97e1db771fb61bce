package logger

import "sync"

// components caches the loggers handed out by Get. Init and
// SetGlobalLogger clear it so later lookups see the new configuration.
var components sync.Map

// Get returns the logger of a component: the global logger tagged with
// the component name.
func Get(component string) *Logger {
	if l, ok := components.Load(component); ok {
		return l.(*Logger)
	}
	l, _ := components.LoadOrStore(component, GetGlobalLogger().WithComponent(component))
	return l.(*Logger)
}

func resetComponents() { components.Clear() }
