// Package audit records an append-only trail of sensitive organization
// operations: lifecycle changes, role changes, invite activity and project
// mutations. Events are written asynchronously from the HTTP handlers and
// listed newest-first per organization.
package audit
