// Command accesshash prints the Argon2id hash to put in
// STOCKLEDGER_ACCESS_PASSWORD_HASH. The password is read from stdin.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/angelmondragon/stockledger/pkg/config"
	"github.com/angelmondragon/stockledger/pkg/security"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func main() {
	_ = godotenv.Load()

	// Only the argon2 section is needed, so the rest of the config may be unset.
	var params config.PasswordConfig
	if err := envconfig.Process(config.EnvPrefix, &params); err != nil {
		fmt.Fprintf(os.Stderr, "accesshash: %v\n", err)
		os.Exit(1)
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(os.Stderr, "accesshash: no password on stdin")
		os.Exit(1)
	}

	hash, err := security.HashPassword(strings.TrimRight(line, "\r\n"), params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "accesshash: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
