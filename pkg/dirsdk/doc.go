/*
Package dirsdk is a Go client for the member directory web service.

The directory is a browser application, so the client behaves like a browser:
it keeps the session cookie in a cookie jar and does not follow redirects, so
callers can see where the server sent them.

	client := dirsdk.NewClient("http://localhost:3000")

	// Register signs the new user in straight away.
	if err := client.Register(ctx, "alice", "p@ss", "Alice"); err != nil {
		...
	}

	people, err := client.Autocomplete(ctx, "ali")

	_ = client.Logout(ctx)

Errors from form submissions are typed so callers can branch on them:

	err := client.Login(ctx, "alice", "wrong")
	if errors.Is(err, dirsdk.ErrInvalidCredentials) {
		...
	}

Protected endpoints answer an anonymous client with a redirect to /login,
reported as ErrNotAuthenticated.
*/
package dirsdk
