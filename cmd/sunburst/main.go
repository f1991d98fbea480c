// Command sunburst is the operator front-end for Sunburst inventories.
package main

import "github.com/io7m-com/sunburst/internal/cli"

func main() {
	cli.Execute()
}
