// Command shape-ingest serves and inspects HTTP/1.1 request streams.
package main

import "github.com/shapestone/shape-ingest/cmd/shape-ingest/cmd"

func main() {
	cmd.Execute()
}
