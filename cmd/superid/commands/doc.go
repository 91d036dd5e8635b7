// Package commands defines the superid CLI, which plays the part of the mobile
// app and, for testing the QR flow, of a partner page.
//
// Commands
//
//   - register       Create an account and its vault key material
//   - login          Sign in and remember the session tokens
//   - logout         Forget the session tokens
//   - add            Encrypt and store a credential
//   - list           Decrypt and print the vault
//   - edit           Replace a stored credential
//   - delete         Remove a stored credential
//   - passwd         Change the master password and re-encrypt the vault
//   - scan           Confirm a partner login by its QR token
//   - partner-login  Start a partner login and wait for confirmation
//
// # Implementation
//
// The master password is never written to disk. Every vault command prompts
// for it, signs in with it to fetch the current key material, derives the key
// and keeps the session in a process-wide holder until the command returns.
package commands
