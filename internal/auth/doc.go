// Package auth issues and verifies access tokens for the local REST API.
//
// Tokens are HS256 JWTs signed with security.jwt.secret. There are no user
// accounts: an operator mints a token for a named subject with
// `ucremote token` and hands it to the controller that needs it. Each token
// carries one role:
//
//	viewer    read hub state and subscribe to the state stream
//	operator  viewer + buttons, IR, activities, dock charging
//	admin     operator + power and restart commands
//
// Role permissions are a static mapping; nothing is looked up per request.
package auth
