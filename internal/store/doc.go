// Package store provides persistent storage for fieldbook using SQLite.
//
// # Architecture
//
// The store package uses an interface-driven architecture with two
// specialized interfaces:
//
//   - AccountStore: Credential records (find by email, save, cascade delete)
//   - PlotStore: Plots and their variant-typed action history
//
// SQLiteStore implements both interfaces in a single struct. MockStore is an
// in-memory implementation with the same semantics for unit tests.
//
// # Data Models
//
//   - Account: Registered user with unique email and bcrypt password hash
//   - Plot: Located parcel owned by exactly one Account
//   - Action: Dated record of a field operation on a Plot
//
// Actions form a closed set of variants. Every Action carries exactly one
// ActionDetails value (Planting, Fertilizing, Watering, Treatment, Harvesting
// or SoilReading), and the kind tag stored alongside the action selects the
// variant table its fields are read from:
//
//	actions              (id, plot_id, kind, action_date, created_at)
//	action_planting      (action_id, crop_type, variety, ...)
//	action_fertilizing   (action_id, fertilizer_type, ...)
//	...
//
// # Ownership and Cascades
//
// Ownership is directed: plots reference their owner, actions reference
// their plot. DeletePlot and DeleteAccount remove the whole subtree in one
// transaction and report how many rows of each kind were removed:
//
//	variant rows -> actions -> plots -> account
//
// Foreign keys are enforced without ON DELETE CASCADE, so a delete that skips
// a level fails instead of leaving orphans behind.
//
// # SQLite Configuration
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// The pool is limited to one connection so that transactions serialize
// writers and the pragmas apply to every statement.
//
// # Error Handling
//
//   - ErrNotFound: Requested entity does not exist
//   - ErrEmailExists: An account with the same email already exists
//   - ErrValidation: A field violated a model constraint (see ValidationError)
//
// Validation runs before any statement is executed, so a rejected record is
// never partially written.
package store
