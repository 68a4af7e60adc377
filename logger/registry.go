package logger

import "sync"

// named holds loggers registered for a subsystem, so an application can send
// one part of the engine elsewhere or at another level:
//
//	logger.Register("nethttp", logger.New(&logger.Config{Level: "trace"}, "orders"))
var named sync.Map // string -> *Logger

// Register stores l under name. Components that look themselves up with Get
// pick it up when they are constructed.
func Register(name string, l *Logger) {
	named.Store(name, l)
}

// Unregister removes the logger stored under name.
func Unregister(name string) {
	named.Delete(name)
}

// Get returns the logger registered under name, or the global logger tagged
// with name as its component.
func Get(name string) *Logger {
	if l, ok := named.Load(name); ok {
		return l.(*Logger)
	}
	return GetGlobalLogger().WithComponent(name)
}

// RegisterDefaults pins the current global logger, tagged per component,
// under each name. Call it after Init.
func RegisterDefaults(names ...string) {
	for _, name := range names {
		Register(name, GetGlobalLogger().WithComponent(name))
	}
}
