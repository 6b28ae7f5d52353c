// Command vellum applies versioned SQL migrations to PostgreSQL.
package main

import "github.com/vellum-db/vellum/internal/cli"

func main() {
	cli.Execute()
}
