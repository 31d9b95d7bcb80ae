package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/target/a11y-scanner/internal/bootstrap"
	"github.com/target/a11y-scanner/internal/data/cryptoutil"
)

var errMissingKey = errors.New("SECRETS_ENCRYPTION_KEY is not set")

func runKeygen(cmdCtx *commandContext, _ []string) error {
	key, err := cryptoutil.GenerateKey()
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	return writef(cmdCtx.Stdout, "%s\n", key)
}

func runEncrypt(cmdCtx *commandContext, args []string) error {
	enc, err := encryptorFor(cmdCtx)
	if err != nil {
		return err
	}
	value, err := secretInput(cmdCtx.Stdin, args)
	if err != nil {
		return err
	}

	out, err := enc.Encrypt([]byte(value))
	if err != nil {
		return fmt.Errorf("encrypt: %w", err)
	}
	return writef(cmdCtx.Stdout, "%s\n", out)
}

func runDecrypt(cmdCtx *commandContext, args []string) error {
	enc, err := encryptorFor(cmdCtx)
	if err != nil {
		return err
	}
	value, err := secretInput(cmdCtx.Stdin, args)
	if err != nil {
		return err
	}
	if !cryptoutil.IsEnvelope(value) {
		return errors.New("value is not an encrypted envelope")
	}

	plain, err := bootstrap.ResolveSecret(enc, value)
	if err != nil {
		return fmt.Errorf("decrypt: %w", err)
	}
	return writef(cmdCtx.Stdout, "%s\n", plain)
}

// encryptorFor refuses to fall back to the noop encryptor so that the CLI
// never prints plaintext while claiming to have encrypted it.
//
//nolint:ireturn // callers only need the Encryptor behaviour.
func encryptorFor(cmdCtx *commandContext) (cryptoutil.Encryptor, error) {
	key := strings.TrimSpace(cmdCtx.Config.SecretsEncryptionKey)
	if key == "" {
		return nil, errMissingKey
	}
	raw, err := cryptoutil.ParseKey(key)
	if err != nil {
		return nil, fmt.Errorf("parse SECRETS_ENCRYPTION_KEY: %w", err)
	}
	return cryptoutil.NewAESGCMEncryptor(raw)
}

// secretInput reads the value from the first argument, or the first line of
// stdin when no argument is given.
func secretInput(stdin io.Reader, args []string) (string, error) {
	if len(args) > 1 {
		return "", fmt.Errorf("expected at most one value, got %d", len(args))
	}
	if len(args) == 1 {
		return args[0], nil
	}
	if stdin == nil {
		return "", errors.New("no value provided")
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("no value provided")
	}
	return line, nil
}
