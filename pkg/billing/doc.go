// Package billing derives billing quotes from live organization counts.
//
// A quote has two line items: seats (one per member, 10 per unit) and
// projects (20 per unit). Quotes are computed on demand from the membership
// and project stores and are never persisted.
package billing
