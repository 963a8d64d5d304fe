package main

import (
	"flag"
	"log"
	"os"

	"github.com/df07/go-photon-planes/web/server"
)

func main() {
	port := flag.Int("port", 8080, "Port to serve on")
	scenesDir := flag.String("scenes", "scenes", "Directory of PBRT scenes offered to clients")
	flag.Parse()

	webServer := server.NewServer(*port, *scenesDir)

	log.Printf("Photon Planes Web Server")
	log.Printf("Visit http://localhost:%d to start rendering", *port)

	if err := webServer.Start(); err != nil {
		log.Printf("Error starting server: %v", err)
		os.Exit(1)
	}
}
