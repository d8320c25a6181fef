// Command apiserver runs the LokaSkor engine API server directly, without the
// CLI wrapper.  Intended for container deployments where configuration comes
// from the environment.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/lokaskor/lokaskor/internal/config"
	"github.com/lokaskor/lokaskor/internal/interfaces/cli"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	flag.Parse()

	var cfg *config.Config
	var err error
	watchPath := ""
	if _, statErr := os.Stat(*configPath); os.IsNotExist(statErr) {
		cfg, err = config.LoadFromEnv()
	} else {
		cfg, err = config.Load(*configPath)
		watchPath = *configPath
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	if err := cli.RunServer(cfg, watchPath); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
