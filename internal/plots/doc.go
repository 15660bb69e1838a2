// Package plots is the plot aggregate seen from an authenticated caller.
//
// The store knows nothing about callers. Service takes the account ID
// attached by the auth gate and decides what that caller may see or change:
//
//   - Mutations (create, delete, add action, delete action) always require
//     the caller to own the plot. Anything else is reported as
//     store.ErrNotFound, so the existence of other owners' records is not
//     revealed.
//   - Reads follow Config.EnforceOwnership. When true, reads behave like
//     mutations. When false, any caller (including an anonymous one, if the
//     server allows it) can read any plot by ID.
//
// An empty caller ID on an operation that needs one yields ErrUnauthenticated.
package plots
