// Package auth implements the authentication and user-administration core of
// the banking back office: analyst/admin accounts, signed session tokens,
// single-use password reset tokens, and the append-only action log.
//
// Components:
//   - Hasher wraps bcrypt with a tunable work factor. Stored hashes that fail
//     to parse are treated as a credential mismatch, never as a server error.
//   - TokenService issues and validates HS256 session tokens with a fixed
//     30-minute validity window. Rotating the signing secret invalidates all
//     outstanding tokens; there is no grace period.
//   - ResetTokens issues unguessable, hour-bounded, single-use reset tokens
//     and consumes them atomically so a token can never be redeemed twice.
//   - ActivitySink is a best-effort audit emitter. The DB-backed recorder
//     never fails the operation it describes; admins read the log in
//     aggregate through AuditService.
//   - SessionService and ProvisioningService orchestrate the account flows on
//     top of RepositoryManager, with a compensating rollback when a
//     provisioning email cannot be delivered.
package auth
