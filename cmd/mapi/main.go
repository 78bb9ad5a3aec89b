// Command mapi is the administrator-side client for modular-api: policy,
// group, user, and module lifecycle management, plus audit queries and a
// policy simulator, none of which are exposed over HTTP.
package main

func main() {
	Execute()
}
