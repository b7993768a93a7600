// Package projects manages the projects that live inside an organization.
//
// A project belongs to exactly one organization and records the user who
// created it as its owner. Project slugs are unique per organization, not
// globally; name collisions get a numeric suffix. Project counts feed the
// billing aggregator alongside seat counts.
package projects
