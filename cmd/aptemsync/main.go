package main

import "github.com/dbsmedya/aptemsync/cmd/aptemsync/cmd"

func main() {
	cmd.Execute()
}
