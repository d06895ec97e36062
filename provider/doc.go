// Package provider discovers repositories of provider accounts.
//
// A Provider lists every repository visible to the configured account,
// following pagination until a short page is returned, drops records excluded
// by the source filter and maps the rest to repository.Descriptor values.
// Discovery never fails from the caller's perspective, errors are logged with
// the account identity and an empty list is returned so that one misbehaving
// source doesn't affect the others.
package provider
