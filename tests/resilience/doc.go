//go:build resilience

// Package resilience contains end-to-end tests for the hubwatch daemon.
// These tests require the "resilience" build tag:
//
//	go test -tags=resilience ./tests/resilience/ -v -timeout 5m
package resilience
