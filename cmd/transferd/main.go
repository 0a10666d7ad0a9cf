// Command transferd runs the resumable file-transfer server: the TUS
// 1.0.0 upload engine, the chunked range-capable download path, and the
// cleanup scheduler, wired together per cmd/transferd/cli.
package main

import "github.com/transferd/transferd/cmd/transferd/cli"

func main() {
	cli.ParseFlags()

	if cli.Flags.ShowVersion {
		cli.ShowVersion()
		return
	}

	cli.Serve()
}
