// Package models defines the core domain models for SquadUp.
//
// # Row Types
//
// Each type mirrors one table of the backing store:
//   - Squad: a persistent group of users who plan sessions together
//   - Membership: (squad, user, role) link row
//   - Session: a single scheduled occurrence a squad plans to attend
//   - Response: a user's stated intention to attend a session (RSVP)
//   - Checkin: a user's confirmation of actual attendance
//   - Profile: per-user counters, streak state and referral code
//   - Referral: one invited user, tracked through signup and conversion
//
// # Derived Views
//
// SessionDetail and SquadSummary are never persisted. They are recomputed
// from the row types above through the aggregate package, so every code
// path that needs counts or rates produces the identical shape.
//
// # Design Principles
//
//  1. Rows are validated and narrowed at the storage boundary; nothing
//     downstream handles duck-typed shapes.
//  2. Relationships use ID strings instead of pointers to avoid circular
//     references.
//  3. Timestamps are Unix seconds (int64), matching the store's columns.
package models
