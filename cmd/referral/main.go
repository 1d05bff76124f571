package main

import (
	"github.com/cryptavpn-crypto/Crypta-referal/internal/referral"
	"github.com/cryptavpn-crypto/Crypta-referal/internal/referral/config"
)

func main() {
	// "./config/config.yaml"
	cfg := config.MustLoad()
	a := referral.NewApp(cfg)
	a.Run()
}
