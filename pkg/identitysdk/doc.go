// Package identitysdk holds the wire types of the identity service HTTP API
// and a small client for its first-party auth endpoints.
//
//	c := identitysdk.NewClient("http://localhost:8080")
//	res, err := c.Login(ctx, "alice", "secret")
//	if identitysdk.IsCode(err, identitysdk.ErrorCodeInvalidCredentials) {
//		// wrong username or password
//	}
//	me, err := c.Me(ctx, res.AccessToken)
package identitysdk
