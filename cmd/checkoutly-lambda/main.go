package main

import (
	"github.com/rs/zerolog/log"

	"github.com/aitsambajwa-iss/Checkoutly/internal/cmd"
)

func main() {
	if err := cmd.RunLambda(); err != nil {
		log.Fatal().Err(err).Msg("lambda_init_failed")
	}
}
