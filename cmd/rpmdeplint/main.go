// Command rpmdeplint finds dependency, repo closure, file conflict, and
// upgrade defects in a set of candidate RPM packages against one or more
// package repositories.
package main

import "os"

func main() {
	os.Exit(Execute())
}
