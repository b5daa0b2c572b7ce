// Package credentials issues, validates and revokes short lived signed
// credentials, and manages the ephemeral secrets of the password recovery
// and email verified signup flows.
//
// Credentials:
//   - TokenAuthority mints HS256 JWTs tagged with a closed Purpose (access,
//     email verification, password recovery). Verify checks signature and
//     expiry, Inspect adds the revocation check, Authenticate returns the
//     claims that pass both, Validate collapses both into a bool.
//   - RevocationRegistry records revoked credentials. The store backed
//     implementation falls back to a process local set when the ephemeral
//     store is unreachable, so other instances may still honor the credential
//     until it expires.
//
// Ephemeral secrets:
//   - CodeLedger issues six digit recovery codes with a single active code
//     per email, an attempt limit and an expiry. Verification returns a
//     VerifyOutcome instead of failing.
//   - PendingStore stages signups keyed by their verification credential with
//     email and username indexes. Dangling indexes read as absent.
//
// Flows:
//   - The command handlers (RequestRecoveryCodeHandler, PreregisterHandler,
//     and friends) are the only code that talks to the Directory and the
//     Notifier. Each reports ActivityEvents to an optional ActivitySink.
//   - LoginHandler signs directory users in by email or username.
package credentials
