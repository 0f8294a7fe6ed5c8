/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>

*/
// @title           Budget Gin API
// @version         1.0
// @description     Proposal, business budget execution and cost allocation API

// @host      localhost:8080
// @BasePath  /api/v1
package main

import (
	"github.com/mautops/budget-gin/cmd"
	_ "github.com/mautops/budget-gin/docs"
)

func main() {
	cmd.Execute()
}
