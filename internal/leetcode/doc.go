// Package leetcode is the problem provider: a small GraphQL client for
// leetcode.com.
//
// Every operation reports upstream failure as ok=false instead of an error.
// Callers degrade ("try again later") and never change state on ok=false.
package leetcode
