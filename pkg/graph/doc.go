// Package graph is the thin REST client for the cloud identity directory.
//
// It covers exactly the endpoints this tool consumes: FIDO2 credential
// creation options and submission, authentication-method listing, the FIDO2
// method configuration, authentication-strength policies, and group
// resolution with paged member enumeration. It is not a general directory
// SDK and never will be.
//
// Authentication is an OAuth2 device-code grant against the tenant's
// authority. The resulting session is explicit: acquire it, hand it to a
// Client, close it when the top-level operation finishes.
package graph
