// Package async provides a panic-safe goroutine helper for fire-and-forget
// background work spawned from request handlers.
package async
