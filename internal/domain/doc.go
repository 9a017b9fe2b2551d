// Package domain holds the records shared by the store, the streak engine,
// the posting coordinator and the command layer.
package domain
