// Command coach critiques jokes and coaches recorded performances, either
// from the command line or as an HTTP service.
package main

// version is set via ldflags during build
var version = "dev"

func main() {
	Execute()
}
