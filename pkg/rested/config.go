package rested

import (
	"strings"
)

// DefaultBaseURL is used when Config.BaseURLs is empty.
const DefaultBaseURL = "http://localhost/"

// DefaultNamespace prefixes every cache key.
const DefaultNamespace = "rested"

// Config is the runtime configuration owned by one Client.
type Config struct {
	// BaseURLs are the roots requests are sent to. Handles use index 0
	// unless WithBaseURL selects another one.
	BaseURLs       []string
	DefaultHeaders map[string]string
	Namespace      string
	// LocalStorage enables reading and writing cache entries.
	LocalStorage bool
	// Offline starts the client in the offline state.
	Offline bool
}

func (c Config) normalized() Config {
	out := Config{
		Namespace:      c.Namespace,
		LocalStorage:   c.LocalStorage,
		Offline:        c.Offline,
		DefaultHeaders: make(map[string]string, len(c.DefaultHeaders)),
	}
	if out.Namespace == "" {
		out.Namespace = DefaultNamespace
	}
	for k, v := range c.DefaultHeaders {
		out.DefaultHeaders[k] = v
	}
	for _, u := range c.BaseURLs {
		out.BaseURLs = append(out.BaseURLs, withTrailingSlash(u))
	}
	if len(out.BaseURLs) == 0 {
		out.BaseURLs = []string{DefaultBaseURL}
	}
	return out
}

func withTrailingSlash(u string) string {
	if !strings.HasSuffix(u, "/") {
		u += "/"
	}
	return u
}
