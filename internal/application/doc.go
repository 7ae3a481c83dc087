// Package application wires resolved settings into a running service.
// It opens the database, builds the session manager, the admin site, the
// schema view and the task dispatcher, and mounts them on the router so the
// main package only parses flags and orchestrates shutdown.
package application
