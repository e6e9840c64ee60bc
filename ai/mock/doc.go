// Package mock provides test doubles for the ai package, allowing unit
// tests to run without external embedding services.
package mock
