package main

import (
	"flag"
	"log"

	"github.com/digitalsp/ai-rakugaki-app/config"
	"github.com/digitalsp/ai-rakugaki-app/server"
)

func main() {
	cfgPath := flag.String("config", "", "path to config.yaml (optional, env vars RAKUGAKI_* also apply)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	app := &server.App{}
	app.Initialize(cfg)
	if err := app.Run(); err != nil {
		log.Fatalf("server: %v", err)
	}
}
