/*
Copyright © 2025 Coastal Research Collaborative

planetfetch retrieves clipped PlanetScope imagery for named coastal sites.
*/
package main

import "github.com/coastalrc/planetfetch/cmd"

func main() {
	cmd.Execute()
}
