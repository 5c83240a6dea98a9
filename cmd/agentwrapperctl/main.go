// Command agentwrapperctl is a demo CLI that drives the agentwrapper
// gateway end to end: it registers both backends, submits a run request,
// and prints the normalized event stream as NDJSON followed by the
// completion result.
package main

import "goa.design/agentwrapper/cmd/agentwrapperctl/cmd"

func main() {
	cmd.Execute()
}
