// Package redirect computes where a user is sent when no valid session can be
// established, and where they return to after signing in again.
//
// [Policy.LoginDestination] is pure: it embeds the current location as a return
// parameter unless the current location already is the login page. A [Navigator]
// performs the navigation; it is invoked only from session failure paths or from
// code guarding a protected view.
package redirect
