// Package logx is leetbot's logging layer: zerolog underneath, a value
// Logger on top whose level and sinks follow config reloads.
package logx
