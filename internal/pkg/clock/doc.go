// Package clock provides the time source used by verification code.
//
// Business code depends on Clocker so TOTP windows can be exercised in tests
// with a pinned instant instead of the wall clock.
package clock
