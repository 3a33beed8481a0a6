// cmd/hostctl/main.go
//
// hostctl – operator CLI for a running hostmap.
//
//	hostctl resolve alias.example /blog/
//	hostctl decide http://www.alias.example/page?x=1 --auth
//	hostctl evict --name alias.example --tenant 2
//	hostctl config
//
// resolve, decide, and evict call the /v1 API of the server given by
// --server (or HOSTMAP_SERVER) with the bearer token from --token (or
// HOSTMAP_TOKEN).  config loads and validates the local
// configuration tree without starting anything.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
