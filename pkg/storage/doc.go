// Package storage persists avatar images for users, organizations and
// projects behind the AvatarStore interface, with filesystem and S3
// backends selected by Config.Type.
package storage
