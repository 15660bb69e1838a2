// Package auth provides stateless authentication for fieldbook.
//
// # Credentials
//
// Accounts register with an email and password. Passwords are hashed with
// bcrypt (BcryptHasher) and only the hash is stored. Service.Authenticate
// looks the account up by exact email match and verifies the password.
// Unknown emails and wrong passwords both produce ErrInvalidCredentials, and
// an unknown email still pays for one bcrypt comparison against a dummy hash.
//
// # Tokens
//
// A successful login returns an HS256 JWT:
//
//	sub  account ID
//	iat  issue time, truncated to the second
//	exp  iat + 1h
//
// Tokens are never stored server-side. There is no refresh or revocation; a
// token is good until exp. JWTIssuer.Validate checks the signature before
// expiry, so a forged token is always ErrMalformedToken and only a genuine
// token can be ErrExpiredToken.
//
// The signing secret comes from configuration (auth.jwt_secret) and must be
// at least MinSecretLength bytes.
//
// # HTTP Gate
//
// Gate is middleware that runs on every request:
//
//   - No bearer credential: continue with no identity
//   - Invalid or expired token: 401 with a JSON error body
//   - Valid token: attach an Identity via WithIdentity and continue
//
// Gate never rejects a request for lacking a token. Routes that need a caller
// add RequireIdentity after Gate:
//
//	r.Use(auth.Gate(issuer, logger, metrics))
//	r.With(auth.RequireIdentity()).Get("/plots/{id}", h.getPlot)
//
// Handlers read the caller with IdentityFromContext.
package auth
