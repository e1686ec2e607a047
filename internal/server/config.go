package server

import (
	"flag"
	"fmt"
)

type Config struct {
	Host       string
	Port       string
	SnapshotDB string
	FilesDir   string
}

func ParseConfig() *Config {
	config := &Config{}

	flag.StringVar(&config.Host, "host", "0.0.0.0", "Host to bind to")
	flag.StringVar(&config.Port, "port", "8080", "Port to listen on")
	flag.StringVar(&config.SnapshotDB, "snapshots", "chatrooms.db", "Path to the room snapshot database")
	flag.StringVar(&config.FilesDir, "files", "files", "Root directory for room file storage")
	flag.Parse()

	return config
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}
