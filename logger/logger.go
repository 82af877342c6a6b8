// Package logger declares the subsystem logger slots the rest of the
// module writes through. Each subsystem logs through its package-level
// var rather than a constructor so wiring a backend (logger/zap) touches
// one place; until logger/zap.Init runs the vars hold zap's no-op
// global logger so an early log line never nil-derefs.
package logger

import "go.uber.org/zap"

// Catalog logs XML-document parsing, compiling and resolution (component G).
var Catalog = zap.NewNop().Sugar()

// SQLNode logs dynamic-SQL tree rendering (component F).
var SQLNode = zap.NewNop().Sugar()

// Binder logs parameter binding (component H).
var Binder = zap.NewNop().Sugar()

// RowMap logs result mapping (component I).
var RowMap = zap.NewNop().Sugar()

// Cache logs the two-tier result cache (component J).
var Cache = zap.NewNop().Sugar()
