package main

import "parley/internal/cli"

func defaultServerURL() string {
	return cli.EnvOr("PARLEY_URL", "http://localhost:8130")
}

func defaultToken() string {
	return cli.EnvOr("PARLEY_TOKEN", "")
}

func defaultNATSURL() string {
	return cli.EnvOr("PARLEY_NATS_URL", "nats://127.0.0.1:4222")
}
