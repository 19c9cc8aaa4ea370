// Package middleware provides the HTTP side of goSession.
//
//   - [RequireBearer] answers 401 to API requests without a valid bearer token.
//   - [SessionBridge] is the session endpoint the client syncs its token to.
//   - [LoadBridge] and [RequireSession] let server-rendered views use the
//     bridged token and send users without one to login.
//
// Token issuance and refresh-credential policy belong to the identity provider
// and are not implemented here.
package middleware
