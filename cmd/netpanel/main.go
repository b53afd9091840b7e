// Command netpanel inspects the network traffic of a browser session.
package main

import "github.com/getmockd/netpanel/pkg/cli"

func main() {
	cli.Execute()
}
