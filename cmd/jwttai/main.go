// Command jwttai validates bearer tokens against a configured key source.
//
//	jwttai serve --config jwttai.yaml
//	jwttai verify --config jwttai.yaml eyJhbGciOi...
//	jwttai inspect --config jwttai.yaml
package main

import (
	"os"

	"github.com/rs/zerolog"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
		logger.Error().Err(err).Msg("execution failed")
		os.Exit(1)
	}
}
