// Package status holds the transient save-status message shown to the user.
//
// A message auto-dismisses after a delay. Every Publish bumps a generation
// counter and cancels the previously scheduled dismissal, and a dismissal
// only clears the message whose generation it was scheduled for. An older
// timer therefore never erases a newer message, even if cancellation loses
// a race with the timer firing.
//
// The Notifier is owned by the editor's event loop and is not safe for
// concurrent use. Timers run on other goroutines, so production code routes
// expirations back through the loop with WithExpiry instead of letting the
// timer touch the Notifier directly.
package status
