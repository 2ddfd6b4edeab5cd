// Package banner renders the user-visible text for lookup failures and
// destination markers, and adapts it to the correlator's Notifier.
package banner
