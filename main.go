// The main package for the crawler executable.
package main

import "github.com/sentipulse/twitter-crawler/cmd"

func main() {
	cmd.Execute()
}
