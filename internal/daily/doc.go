// Package daily posts one problem per guild per calendar day.
//
// Coordinator is the idempotent post-if-not-posted-today routine shared by
// scheduled triggers, post_now and test_post. Registry keeps exactly one
// scheduler trigger per stored guild config.
package daily
