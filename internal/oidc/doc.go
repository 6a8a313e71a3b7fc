/*
Package oidc discovers the key set of an OpenID Connect issuer.

GetWellKnownEndpointsFromIssuerURL fetches

	https://idp.example.com/.well-known/openid-configuration

and returns the jwks_uri it names. The document's "issuer" must equal the
issuer the caller expects; a mismatch is an error, as is a document without
"issuer" or "jwks_uri".

	endpoints, err := oidc.GetWellKnownEndpointsFromIssuerURL(ctx, client, *issuerURL, issuerURL.String())
	if err != nil {
	    return err
	}
	jwksURI := endpoints.JWKSURI

See OpenID Connect Discovery 1.0,
https://openid.net/specs/openid-connect-discovery-1_0.html
*/
package oidc
