package main

import "artisan-storefront/internal/cmd"

func main() {
	cmd.Execute()
}
