package main

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/fyerfyer/fyer-session/crypto"
)

// usage 显示使用帮助信息
func usage(fs *flag.FlagSet, out io.Writer) func() {
	return func() {
		fmt.Fprintf(out, "Session key generator\n\n")
		fmt.Fprintln(out, "Usage:")
		fmt.Fprintf(out, "  %s [options]\n\n", fs.Name())
		fmt.Fprintln(out, "Options:")
		fs.SetOutput(out)
		fs.PrintDefaults()
		fmt.Fprintln(out, "\nExamples:")
		fmt.Fprintf(out, "  %s\n", fs.Name())
		fmt.Fprintf(out, "  %s -salt\n", fs.Name())
		fmt.Fprintf(out, "  %s -secret \"$SESSION_SECRET\" -salt-b64 \"$SESSION_SALT\"\n", fs.Name())
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("genkey", flag.ContinueOnError)
	var (
		saltOnly = fs.Bool("salt", false, "Print a random salt and exit")
		secret   = fs.String("secret", "", "Derive a key from this secret (at least 32 bytes)")
		saltB64  = fs.String("salt-b64", "", "Base64 salt used with -secret")
		timeCost = fs.Uint("time", uint(crypto.DefaultKDFParams.Time), "argon2id iterations")
		memory   = fs.Uint("memory", uint(crypto.DefaultKDFParams.Memory), "argon2id memory in KiB")
	)
	fs.Usage = usage(fs, out)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *saltOnly {
		salt, err := crypto.GenerateSalt()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, crypto.EncodeKey(salt))
		return nil
	}

	var key []byte
	if *secret != "" {
		if *saltB64 == "" {
			return errors.New("-salt-b64 is required with -secret")
		}
		salt, err := crypto.DecodeKey(*saltB64)
		if err != nil {
			return fmt.Errorf("invalid salt: %w", err)
		}
		params := crypto.KDFParams{
			Time:    uint32(*timeCost),
			Memory:  uint32(*memory),
			Threads: crypto.DefaultKDFParams.Threads,
		}
		key, err = crypto.DeriveKey([]byte(*secret), salt, params)
		if err != nil {
			return err
		}
	} else {
		var err error
		key, err = crypto.GenerateKey()
		if err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "hex:    %s\n", hex.EncodeToString(key))
	fmt.Fprintf(out, "base64: %s\n", crypto.EncodeKey(key))
	return nil
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Printf("Error: %s\n", err)
		os.Exit(1)
	}
}
