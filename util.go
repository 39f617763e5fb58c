package main

import "github.com/google/uuid"

// GenerateUUID returns a random v4 UUID string
func GenerateUUID() string {
	return uuid.NewString()
}

// clampName trims s to at most n bytes, falling back to def when empty
func clampName(s, def string, n int) string {
	if s == "" {
		return def
	}
	if len(s) > n {
		return s[:n]
	}
	return s
}
