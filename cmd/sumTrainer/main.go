package main

import (
	"github.com/airenas/sumtrainer/internal/app/train"
	"github.com/labstack/gommon/color"
)

func main() {
	printBanner()
	train.Execute()
}

var (
	version string
)

func printBanner() {
	banner := `
                     __             _                
   _______  ______ _/ /__________ _(_)___  ___  _____
  / ___/ / / / __ ` + "`" + `__ \/ __/ ___/ __ ` + "`" + `/ / __ \/ _ \/ ___/
 (__  ) /_/ / / / / / / /_/ /  / /_/ / / / / /  __/ /    
/____/\__,_/_/ /_/ /_/\__/_/   \__,_/_/_/ /_/\___/_/  v: %s

%s
________________________________________________________

`
	cl := color.New()
	cl.Printf(banner, cl.Red(version), cl.Green("github.com/airenas/sumtrainer"))
}
