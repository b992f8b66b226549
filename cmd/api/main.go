package main

import (
	"os"
)

// @title           Marketplace Catalog API
// @version         1.0
// @description     Master data with approval workflow and vendor inventory.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
