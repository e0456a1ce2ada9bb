// Package events is the in-process publish/subscribe dispatcher that
// decouples the Abode transport from the accessory hosts.
//
// Publishers emit typed Events; subscribers register a Handler and receive
// an unsubscribe function they must call when their component shuts down.
// Delivery is synchronous and in subscription order. A panicking handler is
// recovered and logged so one subscriber cannot take down the others.
package events
