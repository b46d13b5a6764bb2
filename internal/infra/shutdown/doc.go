// Package shutdown runs cleanup hooks when the process is asked to stop.
//
// The serve command registers hooks (stop the HTTP listener, stop the config
// watcher, close the store) and blocks in Wait until SIGINT or SIGTERM
// arrives or its context ends. Hooks run in reverse registration order under
// a shared timeout.
package shutdown
