// Package oidcsdk is a small client for a Keycloak-style OpenID Connect
// provider. It covers the subset of the protocol the gateway needs:
// building authorization and end-session URLs, exchanging authorization
// codes, refreshing token sets, and the client_credentials grant for
// service-to-service calls.
//
// The client never validates token signatures. The gateway talks to the
// provider's token endpoint over TLS on the server side, so a token set
// received from that call is trusted by provenance; claims are read with
// an unverified decode. The one check the client does perform is the
// nonce claim on exchanged ID tokens, which ties a callback to the login
// redirect that initiated it.
//
// Usage:
//
//	client := oidcsdk.NewClient(oidcsdk.Config{
//		BaseURL:      "https://id.example.com/auth",
//		Realm:        "canopy",
//		ClientID:     "gateway",
//		ClientSecret: secret,
//		RedirectURI:  "https://console.example.com/oidc/callback",
//	})
//
//	tokens, err := client.Exchange(ctx, code, client.CallbackRedirectURI(backURL), expectedNonce)
package oidcsdk
