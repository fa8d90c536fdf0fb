package main

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"attestor/internal/compact"
	"attestor/internal/credential"
	"attestor/internal/document"
)

var keygen = &cli.Command{
	Name:  "keygen",
	Usage: "Generate a signing key and print its public JWK set",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "force",
			Usage: "overwrite an existing key file",
		},
	},
	Action: func(cmd *cli.Context) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		path := cfg.Issuer.KeyFile
		if _, err := os.Stat(path); err == nil && !cmd.Bool("force") {
			return fmt.Errorf("%s already exists; pass --force to replace it", path)
		}

		key, err := credential.GenerateKey()
		if err != nil {
			return err
		}
		if err := credential.SaveKey(path, key); err != nil {
			return err
		}
		set, err := credential.PublicJWKS(key.Public().(ed25519.PublicKey))
		if err != nil {
			return err
		}
		return printJSON(cmd.App.Writer, set)
	},
}

var issue = &cli.Command{
	Name:      "issue",
	Usage:     "Sign a credential for already-verified claims and print its compact payload",
	ArgsUsage: "[claims.json | -]",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "claim",
			Aliases: []string{"c"},
			Usage:   "field=value, repeatable (e.g. name=\"John Smith\")",
		},
		&cli.StringFlag{
			Name:  "out",
			Usage: "write the credential JSON to this file",
		},
		&cli.StringFlag{
			Name:  "qr",
			Usage: "write the payload as a PNG QR code to this file",
		},
		&cli.IntFlag{
			Name:  "qr-size",
			Value: compact.DefaultQRSize,
		},
		&cli.BoolFlag{
			Name:  "jwt",
			Usage: "print the VC-JWT envelope instead of the compact payload",
		},
	},
	Action: func(cmd *cli.Context) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		raw, err := readClaims(cmd)
		if err != nil {
			return err
		}
		values, err := document.NewValues(raw)
		if err != nil {
			return err
		}

		key, err := credential.LoadKey(cfg.Issuer.KeyFile)
		if err != nil {
			return fmt.Errorf("load signing key: %w", err)
		}
		issuer, err := credential.NewIssuer(key, credential.WithIdentity(cfg.Issuer.DID, cfg.Issuer.Name))
		if err != nil {
			return err
		}
		cred, err := issuer.Issue(values)
		if err != nil {
			return err
		}
		payload, err := compact.Encode(cred)
		if err != nil {
			return err
		}

		if path := cmd.String("out"); path != "" {
			b, err := json.MarshalIndent(cred, "", "  ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, b, 0o644); err != nil {
				return err
			}
		}
		if path := cmd.String("qr"); path != "" {
			png, err := compact.RenderQR(payload, cmd.Int("qr-size"))
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, png, 0o644); err != nil {
				return err
			}
		}

		if cmd.Bool("jwt") {
			token, err := issuer.Envelope(cred)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.App.Writer, token)
			return err
		}
		_, err = fmt.Fprintln(cmd.App.Writer, payload)
		return err
	},
}

var verify = &cli.Command{
	Name:      "verify",
	Usage:     "Check the signature of a compact payload",
	ArgsUsage: "<payload | ->",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "trust-jwks",
			Usage: "only trust keys published at this JWKS URL",
		},
		&cli.BoolFlag{
			Name:  "trust-key-file",
			Usage: "only trust the key in --key-file",
		},
	},
	Action: func(cmd *cli.Context) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		payload, err := readArg(cmd)
		if err != nil {
			return err
		}
		c, err := compact.Decode(payload)
		if err != nil {
			return report(cmd, credential.Verification{Status: credential.StatusMalformed, Reason: err.Error()})
		}

		var resolver credential.KeyResolver
		switch {
		case cmd.String("trust-jwks") != "":
			ctx, cancel := context.WithTimeout(cmd.Context, 30*time.Second)
			defer cancel()
			resolver, err = credential.NewRemoteResolver(ctx, cmd.String("trust-jwks"), time.Minute)
			if err != nil {
				return err
			}
		case cmd.Bool("trust-key-file"):
			key, err := credential.LoadKey(cfg.Issuer.KeyFile)
			if err != nil {
				return err
			}
			issuer, err := credential.NewIssuer(key, credential.WithIdentity(cfg.Issuer.DID, cfg.Issuer.Name))
			if err != nil {
				return err
			}
			resolver = credential.StaticResolver{issuer.VerificationMethod(): issuer.PublicKey()}
		}

		return report(cmd, credential.NewVerifier(resolver).Verify(cmd.Context, c))
	},
}

// report prints v and exits 2 unless the credential checked out.
func report(cmd *cli.Context, v credential.Verification) error {
	if err := printJSON(cmd.App.Writer, v); err != nil {
		return err
	}
	if !v.Valid() {
		return cli.Exit("", 2)
	}
	return nil
}

var decode = &cli.Command{
	Name:      "decode",
	Usage:     "Print the credential inside a compact payload",
	ArgsUsage: "<payload | ->",
	Action: func(cmd *cli.Context) error {
		payload, err := readArg(cmd)
		if err != nil {
			return err
		}
		c, err := compact.Decode(payload)
		if err != nil {
			return err
		}
		return printJSON(cmd.App.Writer, c)
	},
}

// readArg returns the first argument, or stdin when it is "-".
func readArg(cmd *cli.Context) (string, error) {
	arg := cmd.Args().First()
	switch arg {
	case "":
		return "", errors.New("missing payload argument")
	case "-":
		b, err := io.ReadAll(io.LimitReader(cmd.App.Reader, 8<<20))
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	default:
		return strings.TrimSpace(arg), nil
	}
}

// readClaims merges a JSON object file (or stdin) with --claim pairs; flags win.
func readClaims(cmd *cli.Context) (map[string]string, error) {
	claims := map[string]string{}
	if src := cmd.Args().First(); src != "" {
		var r io.Reader = cmd.App.Reader
		if src != "-" {
			f, err := os.Open(src)
			if err != nil {
				return nil, err
			}
			defer f.Close()
			r = f
		}
		if err := json.NewDecoder(r).Decode(&claims); err != nil {
			return nil, fmt.Errorf("claims must be a JSON object of strings: %w", err)
		}
	}
	for _, pair := range cmd.StringSlice("claim") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("claim %q is not field=value", pair)
		}
		claims[strings.TrimSpace(k)] = v
	}
	if len(claims) == 0 {
		return nil, errors.New("no claims given")
	}
	return claims, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
