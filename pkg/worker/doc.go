// Package worker runs scheduled background maintenance for the Roster
// server, currently the expired invite and session sweep.
package worker
