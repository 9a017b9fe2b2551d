package discord

import (
	"errors"
	"strings"

	"github.com/go-andiamo/splitter"

	"leetbot/internal/transport"
)

// DefaultPrefix starts text commands.
const DefaultPrefix = "!"

var errUnbalanced = errors.New("unbalanced quotes")

var argSplitter = mustSplitter()

func mustSplitter() splitter.Splitter {
	s, err := splitter.NewSplitter(' ', splitter.DoubleQuotes, splitter.LeftRightDoubleDoubleQuotes)
	if err != nil {
		panic(err)
	}
	return s
}

// parsePrefix parses "!name a b key=value". Positional arguments fill the
// command's options in declaration order. ok=false means content is not a
// command.
func parsePrefix(content, prefix string, specs map[string]transport.CommandSpec) (inv transport.Invocation, ok bool, err error) {
	content = strings.TrimSpace(content)
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return transport.Invocation{}, false, nil
	}
	body := strings.TrimSpace(strings.TrimPrefix(content, prefix))
	if body == "" {
		return transport.Invocation{}, false, nil
	}

	parts, serr := argSplitter.Split(body)
	if serr != nil {
		return transport.Invocation{}, true, errUnbalanced
	}
	tokens := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tokens = append(tokens, p)
		}
	}
	if len(tokens) == 0 {
		return transport.Invocation{}, false, nil
	}

	inv = transport.Invocation{
		Command: strings.ToLower(tokens[0]),
		Args:    map[string]string{},
		Source:  "prefix",
	}
	spec := specs[inv.Command]
	known := make(map[string]bool, len(spec.Options))
	for _, o := range spec.Options {
		known[o.Name] = true
	}

	var positional []string
	for _, tok := range tokens[1:] {
		if k, v, found := strings.Cut(tok, "="); found && known[strings.ToLower(k)] {
			inv.Args[strings.ToLower(k)] = unquote(v)
			continue
		}
		positional = append(positional, unquote(tok))
	}
	for _, o := range spec.Options {
		if len(positional) == 0 {
			break
		}
		if _, set := inv.Args[o.Name]; set {
			continue
		}
		inv.Args[o.Name] = positional[0]
		positional = positional[1:]
	}
	return inv, true, nil
}

func unquote(s string) string {
	for _, q := range [][2]string{{`"`, `"`}, {"“", "”"}} {
		if len(s) >= len(q[0])+len(q[1]) && strings.HasPrefix(s, q[0]) && strings.HasSuffix(s, q[1]) {
			return s[len(q[0]) : len(s)-len(q[1])]
		}
	}
	return s
}
